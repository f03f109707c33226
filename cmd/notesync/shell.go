package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/lifecycle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	web3notes "github.com/JPrieve/web3-notes"
	"github.com/JPrieve/web3-notes/pkg/adapters/identity"
	eventsource "github.com/JPrieve/web3-notes/pkg/adapters/lifecycle"
	"github.com/JPrieve/web3-notes/pkg/core"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session",
	Long: `Shell keeps one client open. Drafts go through the note form; other
actions are dispatched in the background and their outcomes, cache
refreshes and NoteCreated events are printed as they arrive.

Type "help" for the command list.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client, err := openClient(cmd)
		if err != nil {
			fatal("Failed to open client", err)
		}
		defer client.Close()

		ctx, stop := context.WithCancel(context.Background())
		defer stop()

		sh := newShell(client, os.Stdout)
		if err := sh.follow(ctx); err != nil {
			fatal("Failed to follow events", err)
		}

		in := bufio.NewScanner(os.Stdin)
		sh.prompt()
		for in.Scan() {
			quit, err := sh.exec(ctx, in.Text())
			if err != nil {
				sh.printf("error: %v\n", err)
			}
			if quit {
				return
			}
			sh.prompt()
		}
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

const shellHelp = `Form:
  new                     open a blank draft
  edit <id>               open a draft from an existing note
  title <text>            set the draft title
  content <text>          set the draft content
  public on|off           set visibility of a new note
  form                    show the draft
  submit                  submit the draft and wait for confirmation
  cancel                  discard the draft
Actions (background):
  delete <id>  pin <id>  visibility <id>  tip <id> <ether>
Reads:
  list [public|pinned]    summary    state
Session:
  as <address>            switch account
  mine                    produce a development block
  offline on|off          simulate an unreachable node
  quit`

// shell is an interactive session over one client. Writes are serialized
// because event printers run alongside the command loop.
type shell struct {
	client *web3notes.Client

	mu  sync.Mutex
	out io.Writer
}

func newShell(client *web3notes.Client, out io.Writer) *shell {
	return &shell{client: client, out: out}
}

func (s *shell) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *shell) prompt() {
	s.printf("notes> ")
}

// follow prints cache events, dispatched outcomes, NoteCreated events and
// account switches until ctx is done.
func (s *shell) follow(ctx context.Context) error {
	events, err := s.client.Cache().Subscribe(ctx, "**")
	if err != nil {
		return err
	}
	src := eventsource.NewSource(events)
	if err := src.Start(ctx); err != nil {
		return err
	}
	s.spawn(ctx, func(ctx context.Context) error {
		for e := range src.Events() {
			s.printf("\n[cache] %s\n", e)
		}
		return nil
	})

	s.spawn(ctx, func(ctx context.Context) error {
		for out := range s.client.Outcomes() {
			s.mu.Lock()
			fmt.Fprintln(s.out)
			printOutcome(s.out, out)
			s.mu.Unlock()
		}
		return nil
	})

	if s.client.Devnet != nil {
		created := make(chan core.NoteCreated, 16)
		sub := s.client.Devnet.SubscribeNoteCreated(created)
		s.spawn(ctx, func(ctx context.Context) error {
			defer sub.Unsubscribe()
			for {
				select {
				case <-ctx.Done():
					return nil
				case err := <-sub.Err():
					return err
				case ev := <-created:
					s.printf("\n[ledger] NoteCreated #%d by %s\n", ev.ID, core.ShortAddress(ev.Author))
				}
			}
		})
	}

	if f, ok := s.client.Identity.(*identity.File); ok {
		s.spawn(ctx, func(ctx context.Context) error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case addr := <-f.Changes():
					s.printf("\n[identity] account is now %s\n", addr.Hex())
				}
			}
		})
	}
	return nil
}

func (s *shell) spawn(ctx context.Context, fn func(context.Context) error) {
	lifecycle.Go(ctx, fn, lifecycle.WithErrorHandler(func(err error) {
		s.printf("\nprinter stopped: %v\n", err)
	}))
}

// exec runs one command line and reports whether the session should end.
func (s *shell) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	verb, args := fields[0], fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), verb))
	form := s.client.Form()

	switch verb {
	case "help":
		s.printf("%s\n", shellHelp)
	case "quit", "exit":
		return true, nil

	case "new":
		return false, form.StartCreate()
	case "edit":
		id, err := s.id(args)
		if err != nil {
			return false, err
		}
		n, ok, err := findNote(ctx, s.client, id)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, fmt.Errorf("note #%d not found", id)
		}
		return false, form.Edit(n)
	case "title":
		return false, form.SetTitle(rest)
	case "content":
		return false, form.SetContent(rest)
	case "public":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return false, errors.New("usage: public on|off")
		}
		return false, form.SetPublic(args[0] == "on")
	case "form":
		v := form.View()
		s.printf("%s (%s) %q / %q public=%t", v.State, v.Mode, v.Draft.Title, v.Draft.Content, v.Draft.IsPublic)
		if v.Message != "" {
			s.printf(" error=%q", v.Message)
		}
		s.printf("\n")
	case "submit":
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		out, err := s.client.SubmitForm(ctx)
		if err != nil {
			return false, err
		}
		s.mu.Lock()
		printOutcome(s.out, out)
		s.mu.Unlock()
	case "cancel":
		return false, form.Cancel()

	case "delete", "pin", "visibility":
		id, err := s.id(args)
		if err != nil {
			return false, err
		}
		ref, err := resolveNote(ctx, s.client, id)
		if err != nil {
			return false, err
		}
		var m core.Mutation
		switch verb {
		case "delete":
			m = core.Delete{Note: ref}
		case "pin":
			m = core.TogglePin{Note: ref}
		default:
			m = core.ToggleVisibility{Note: ref}
		}
		return false, s.dispatch(ctx, m)
	case "tip":
		if len(args) != 2 {
			return false, errors.New("usage: tip <id> <ether>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return false, err
		}
		amount, err := core.ParseEther(args[1])
		if err != nil {
			return false, err
		}
		ref, err := resolveNote(ctx, s.client, id)
		if err != nil {
			return false, err
		}
		return false, s.dispatch(ctx, core.Tip{Note: ref, Amount: amount})

	case "list":
		return false, s.list(ctx, args)
	case "summary":
		sum, err := s.client.Summary(ctx)
		if err != nil {
			return false, err
		}
		if !sum.Connected {
			s.printf("not connected\n")
			return false, nil
		}
		s.printf("%s: %d notes, %d pinned\n", core.ShortAddress(sum.Address), sum.Notes, sum.Pinned)
	case "state":
		data, err := json.MarshalIndent(map[string]any{
			s.client.ComponentType():           s.client.State(),
			s.client.Cache().ComponentType():   s.client.Cache().State(),
			s.client.Watcher.ComponentType():   s.client.Watcher.State(),
			s.client.Submitter.ComponentType(): s.client.Submitter.State(),
		}, "", "  ")
		if err != nil {
			return false, err
		}
		s.printf("%s\n", data)

	case "as":
		if len(args) != 1 || !common.IsHexAddress(args[0]) {
			return false, errors.New("usage: as <address>")
		}
		static, ok := s.client.Identity.(*identity.Static)
		if !ok {
			return false, errors.New("account follows the identity file; edit it instead")
		}
		static.Set(common.HexToAddress(args[0]))
		s.printf("acting as %s\n", common.HexToAddress(args[0]).Hex())
	case "mine":
		if s.client.Devnet == nil {
			return false, errors.New("not on a development ledger")
		}
		s.printf("block %d\n", s.client.Devnet.Mine(ctx))
	case "offline":
		if s.client.Devnet == nil {
			return false, errors.New("not on a development ledger")
		}
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return false, errors.New("usage: offline on|off")
		}
		s.client.Devnet.SetOffline(args[0] == "on")

	default:
		return false, fmt.Errorf("unknown command %q (try help)", verb)
	}
	return false, nil
}

func (s *shell) id(args []string) (uint64, error) {
	if len(args) != 1 {
		return 0, errors.New("expected a note id")
	}
	return parseID(args[0])
}

func (s *shell) dispatch(ctx context.Context, m core.Mutation) error {
	h, err := s.client.Dispatch(ctx, m)
	if err != nil {
		return err
	}
	s.printf("%s submitted %s\n", h.Action, h.Hash().Hex())
	return nil
}

func (s *shell) list(ctx context.Context, args []string) error {
	views := s.client.Views()
	key := views.UserNotes
	if len(args) > 0 {
		switch args[0] {
		case "public":
			key = views.PublicNotes
		case "pinned":
			key = views.PinnedNotes
		default:
			return errors.New("usage: list [public|pinned]")
		}
	}
	if key.Disabled() {
		return core.ErrNotConnected
	}

	entry, err := s.client.Cache().Fetch(ctx, key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(entry.Notes()) == 0 {
		fmt.Fprintln(s.out, "no notes")
	}
	for _, n := range entry.Notes() {
		printNote(s.out, n)
	}
	return nil
}
