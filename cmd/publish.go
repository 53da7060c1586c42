package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/spf13/cobra"

	"github.com/Shugur-Network/nostr-client/internal/client"
	"github.com/Shugur-Network/nostr-client/internal/constants"
	"github.com/Shugur-Network/nostr-client/internal/event"
	"github.com/Shugur-Network/nostr-client/internal/filter"
)

type publishFunc func(ctx context.Context, s *session) (*nostr.Event, error)

func newPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Sign an event and send it to every relay",
	}
	cmd.PersistentFlags().Duration("timeout", constants.DefaultFetchTimeout, "How long to wait for relay answers")

	note := &cobra.Command{
		Use:   "note <message>",
		Short: "Publish a text note",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := strings.Join(args, " ")
			return runPublish(cmd, func(_ context.Context, s *session) (*nostr.Event, error) {
				return s.client().PublishNote(msg)
			})
		},
	}

	reply := &cobra.Command{
		Use:   "reply <event-id> <message>",
		Short: "Reply to a note",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkHex("event id", args[0]); err != nil {
				return err
			}
			root, _ := cmd.Flags().GetString("root")
			to := event.ReplyTo{ReplyToID: args[0], RootID: root}
			msg := strings.Join(args[1:], " ")
			return runPublish(cmd, func(_ context.Context, s *session) (*nostr.Event, error) {
				return s.client().PublishReply(to, msg)
			})
		},
	}
	reply.Flags().String("root", "", "Thread root id when it differs from the parent")

	repost := &cobra.Command{
		Use:   "repost <event-id> [quote]",
		Short: "Repost a note, optionally with a quote",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkHex("event id", args[0]); err != nil {
				return err
			}
			quote := strings.Join(args[1:], " ")
			return runPublish(cmd, func(_ context.Context, s *session) (*nostr.Event, error) {
				return s.client().PublishRepost(args[0], quote)
			})
		},
	}

	react := &cobra.Command{
		Use:   "react <event-id> <author-pubkey>",
		Short: "Like or dislike a note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			for i, what := range []string{"event id", "author pubkey"} {
				if err := checkHex(what, args[i]); err != nil {
					return err
				}
			}
			dislike, _ := cmd.Flags().GetBool("dislike")
			return runPublish(cmd, func(_ context.Context, s *session) (*nostr.Event, error) {
				return s.client().PublishReaction(args[0], args[1], !dislike)
			})
		},
	}
	react.Flags().Bool("dislike", false, "Publish a negative reaction")

	profile := &cobra.Command{
		Use:   "profile",
		Short: "Publish profile metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var meta event.Metadata
			meta.Name, _ = flags.GetString("name")
			meta.About, _ = flags.GetString("about")
			meta.Picture, _ = flags.GetString("picture")
			meta.Nip05, _ = flags.GetString("nip05")
			meta.Lud16, _ = flags.GetString("lud16")
			if meta == (event.Metadata{}) {
				return fmt.Errorf("set at least one of --name, --about, --picture, --nip05, --lud16")
			}
			return runPublish(cmd, func(_ context.Context, s *session) (*nostr.Event, error) {
				return s.client().PublishMetadata(meta)
			})
		},
	}
	profile.Flags().String("name", "", "Display name")
	profile.Flags().String("about", "", "Short bio")
	profile.Flags().String("picture", "", "Avatar URL")
	profile.Flags().String("nip05", "", "NIP-05 identifier")
	profile.Flags().String("lud16", "", "Lightning address")

	follow := &cobra.Command{
		Use:   "follow <pubkey>...",
		Short: "Add pubkeys to the contact list",
		Long:  "Fetch the current contact list from the relays, add the pubkeys and publish the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, pk := range args {
				if err := checkHex("pubkey", pk); err != nil {
					return err
				}
			}
			timeout, _ := cmd.Flags().GetDuration("timeout")
			return runPublish(cmd, func(ctx context.Context, s *session) (*nostr.Event, error) {
				self := s.client().Pubkey()
				s.await(ctx, func() []string {
					return s.client().Subscribe([]nostr.Filter{filter.ContactList(self, filter.ContactListQuery{})}, true)
				}, timeout)

				var current []event.ContactListEntry
				if evt := s.events.latest(int(event.KindContactList), self); evt != nil {
					current = event.ParseContacts(evt)
				}
				return s.client().PublishContactList(mergeContacts(current, args))
			})
		},
	}

	cmd.AddCommand(note, reply, repost, react, profile, follow)
	return cmd
}

func runPublish(cmd *cobra.Command, publish publishFunc) error {
	ctx := cmd.Context()
	timeout, _ := cmd.Flags().GetDuration("timeout")

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	evt, err := publish(ctx, s)
	if err != nil {
		return err
	}
	fmt.Printf("Published %s\n", evt.ID)

	acks := s.awaitAcks(ctx, evt.ID, timeout)
	printAcks(acks)
	for _, ack := range acks {
		if ack.Accepted {
			return nil
		}
	}
	return fmt.Errorf("no relay accepted event %s", evt.ID)
}

// mergeContacts appends pubkeys missing from current, keeping current's order.
func mergeContacts(current []event.ContactListEntry, pubkeys []string) []event.ContactListEntry {
	seen := make(map[string]bool, len(current))
	for _, c := range current {
		seen[c.Pubkey] = true
	}
	merged := append([]event.ContactListEntry(nil), current...)
	for _, pk := range pubkeys {
		if seen[pk] {
			continue
		}
		seen[pk] = true
		merged = append(merged, event.ContactListEntry{Pubkey: pk})
	}
	return merged
}

func printAcks(acks map[string]client.AckStatus) {
	urls := make([]string, 0, len(acks))
	for url := range acks {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	for _, url := range urls {
		fmt.Printf("  %-40s %s\n", url, ackLine(acks[url]))
	}
}

func ackLine(ack client.AckStatus) string {
	switch {
	case ack.Pending:
		return "no answer"
	case ack.Accepted:
		return "accepted " + ack.At.Format(time.TimeOnly)
	default:
		return "rejected: " + ack.Reason
	}
}

func checkHex(what, value string) error {
	if !nostr.IsValid32ByteHex(value) {
		return fmt.Errorf("%s must be 64 hex characters: %q", what, value)
	}
	return nil
}
