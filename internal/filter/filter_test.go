package filter

import (
	"strings"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shugur-Network/nostr-client/internal/errors"
)

var (
	alice = strings.Repeat("a", 64)
	bob   = strings.Repeat("b", 64)
	note1 = strings.Repeat("1", 64)
)

func TestWireFormOmitsAbsentFields(t *testing.T) {
	since := nostr.Timestamp(1700000000)

	tests := []struct {
		name string
		f    nostr.Filter
		want string
	}{
		{"empty", nostr.Filter{}, `{}`},
		{"profile", Profile(alice), `{"authors":["` + alice + `"],"kinds":[0],"limit":1}`},
		{"profiles", Profiles([]string{alice, bob}), `{"authors":["` + alice + `","` + bob + `"],"kinds":[0]}`},
		{"feed first page", Posts(PostQuery{Authors: []string{alice}, Limit: 250}), `{"authors":["` + alice + `"],"kinds":[1],"limit":250}`},
		{"feed since", Posts(PostQuery{Authors: []string{alice}, Since: &since}), `{"authors":["` + alice + `"],"kinds":[1],"since":1700000000}`},
		{"posts by id", Posts(PostQuery{IDs: []string{note1}}), `{"ids":["` + note1 + `"],"kinds":[1]}`},
		{"replies", Replies([]string{note1}, nil), `{"kinds":[1],"#e":["` + note1 + `"]}`},
		{"reactions", Reactions([]string{note1}, []string{bob}), `{"authors":["` + bob + `"],"kinds":[7],"#e":["` + note1 + `"]}`},
		{"contact list", ContactList(alice, ContactListQuery{}), `{"authors":["` + alice + `"],"kinds":[3]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Encode(tt.f)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
			assert.NotContains(t, string(raw), "null")
			require.NoError(t, Validate(tt.f))
		})
	}
}

func TestValidateRejects(t *testing.T) {
	since, until := nostr.Timestamp(20), nostr.Timestamp(10)

	tests := map[string]nostr.Filter{
		"bad author":      {Authors: []string{"npub1xyz"}},
		"bad id":          {IDs: []string{"abc"}},
		"unknown kind":    {Kinds: []int{30023}},
		"unsupported tag": {Tags: nostr.TagMap{"t": {"nostr"}}},
		"bad tag value":   {Tags: nostr.TagMap{"e": {"zz"}}},
		"empty tag":       {Tags: nostr.TagMap{"p": {}}},
		"inverted range":  {Since: &since, Until: &until},
		"negative limit":  {Limit: -1},
	}

	for name, f := range tests {
		t.Run(name, func(t *testing.T) {
			err := Validate(f)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		})
	}
}
