package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Shugur-Network/nostr-client/internal/constants"
	"github.com/Shugur-Network/nostr-client/internal/event"
	"github.com/Shugur-Network/nostr-client/internal/storage"
)

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Query the relays once and print what they store",
	}
	cmd.PersistentFlags().Duration("timeout", constants.DefaultFetchTimeout, "Give up on relays that have not answered by then")

	profile := &cobra.Command{
		Use:   "profile <pubkey>",
		Short: "Print a profile and its contact list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pubkey := args[0]
			if err := checkHex("pubkey", pubkey); err != nil {
				return err
			}
			timeout, _ := cmd.Flags().GetDuration("timeout")

			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			complete := s.await(cmd.Context(), func() []string {
				return s.node.Subscriber.SubscribeToProfileMetadataAndContactList(pubkey)
			}, timeout)

			found := false
			if evt := s.events.latest(int(event.KindMetadata), pubkey); evt != nil {
				meta, err := event.ParseMetadata(evt)
				if err != nil {
					return err
				}
				out, err := json.MarshalIndent(meta, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				found = true
			}
			if evt := s.events.latest(int(event.KindContactList), pubkey); evt != nil {
				contacts := event.ParseContacts(evt)
				fmt.Printf("Following %d\n", len(contacts))
				for _, c := range contacts {
					fmt.Printf("  %s %s\n", c.Pubkey, c.Petname)
				}
				found = true
			}
			if !found {
				return fmt.Errorf("no profile found for %s", pubkey)
			}
			if !complete {
				fmt.Println("(not every relay answered)")
			}
			return nil
		},
	}

	thread := &cobra.Command{
		Use:   "thread <event-id>...",
		Short: "Print notes with their replies and reactions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if err := checkHex("event id", id); err != nil {
					return err
				}
			}
			timeout, _ := cmd.Flags().GetDuration("timeout")

			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			s.await(cmd.Context(), func() []string {
				return s.node.Subscriber.SubscribeToThread(args)
			}, timeout)

			events := s.events.all()
			sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt < events[j].CreatedAt })
			for _, evt := range events {
				fmt.Printf("%s %s\n", evt.CreatedAt.Time().Format("2006-01-02 15:04"), storage.Summary(evt))
			}
			return nil
		},
	}

	cmd.AddCommand(profile, thread)
	return cmd
}
