package storage

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/nbd-wtf/go-nostr"

	"github.com/Shugur-Network/nostr-client/internal/event"
)

// Printer writes a one-line summary of every event. Used by the CLI when
// storage is disabled.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Process(evt *nostr.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.w, Summary(evt))
}

// Summary renders evt as "kind author: text".
func Summary(evt *nostr.Event) string {
	author := short(evt.PubKey)
	kind := event.Kind(evt.Kind)
	switch kind {
	case event.KindMetadata:
		meta, err := event.ParseMetadata(evt)
		if err != nil {
			return fmt.Sprintf("%s %s: <unreadable>", kind, author)
		}
		return fmt.Sprintf("%s %s: name=%q about=%q", kind, author, meta.Name, meta.About)

	case event.KindTextNote:
		post := event.ParsePost(evt)
		var b strings.Builder
		fmt.Fprintf(&b, "%s %s", kind, author)
		if post.ReplyTo != nil {
			fmt.Fprintf(&b, " reply-to=%s", short(post.ReplyTo.ReplyToID))
		}
		if post.Repost != nil {
			fmt.Fprintf(&b, " repost=%s", short(post.Repost.ID))
		}
		fmt.Fprintf(&b, ": %s", strings.ReplaceAll(post.Msg, "\n", " "))
		return b.String()

	case event.KindContactList:
		return fmt.Sprintf("%s %s: %d contacts", kind, author, len(event.ParseContacts(evt)))

	case event.KindReaction:
		target, positive := event.ParseReaction(evt)
		verb := "likes"
		if !positive {
			verb = "dislikes"
		}
		return fmt.Sprintf("%s %s: %s %s", kind, author, verb, short(target))
	}
	return fmt.Sprintf("%s %s", kind, author)
}

func short(hex string) string {
	if len(hex) > 8 {
		return hex[:8]
	}
	return hex
}
