package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	New(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Attach(ctx context.Context, args []string) error
	Comment(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Status(ctx context.Context) error
	Sync(ctx context.Context) error
	Retry(ctx context.Context, args []string) error
	Discard(ctx context.Context, args []string) error
}

const helpText = `Available commands:
  new [title]               create a draft record
  edit <id>                 change a draft's title and fields
  attach <id> <path>        attach a photo or document to a draft
  comment <id>              comment on a draft or a server record
  list [id]                 list drafts, or show one with its attachments
  status                    show what is waiting to sync
  sync                      sync now
  retry [id]                re-queue failed items (all, or one by id)
  discard <id>              delete a draft or an attachment locally
  exit | quit               leave the program`

// runREPL starts a simple read–eval–print loop for the fieldsync CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a' with the remaining tokens as arguments.
// Unknown commands are reported back to the user. The loop exits on EOF,
// when ctx is cancelled, or when the user types "exit" or "quit".
//
// Errors returned by command handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for ctx.Err() == nil {
		fmt.Printf("fs %s> ", statusFn())
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			printlnFn(helpText)
		case "new":
			cmdErr = a.New(ctx, args)
		case "edit":
			cmdErr = a.Edit(ctx, args)
		case "attach":
			cmdErr = a.Attach(ctx, args)
		case "comment":
			cmdErr = a.Comment(ctx, args)
		case "l", "list":
			cmdErr = a.List(ctx, args)
		case "status":
			cmdErr = a.Status(ctx)
		case "sync":
			cmdErr = a.Sync(ctx)
		case "retry":
			cmdErr = a.Retry(ctx, args)
		case "discard":
			cmdErr = a.Discard(ctx, args)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
	}
}
