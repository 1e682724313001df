// trainctl - command line access to the training service
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/clinicops/trainingdesk/internal/chat"
	"github.com/clinicops/trainingdesk/internal/config"
	"github.com/clinicops/trainingdesk/internal/models"
	"github.com/clinicops/trainingdesk/internal/remote"
	"github.com/clinicops/trainingdesk/internal/stream"
	"github.com/clinicops/trainingdesk/internal/upload"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	exitOnError(err)

	client := remote.NewClient(cfg.APIBaseURL, cfg.APIToken, cfg.RequestTimeout)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := os.Args[1]

	switch cmd {
	case "room":
		roomID, err := client.EnsureRoom(ctx)
		exitOnError(err)
		printJSON(models.Room{ID: roomID})

	case "ask":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: trainctl ask <prompt>")
			os.Exit(1)
		}
		prompt := strings.TrimSpace(strings.Join(os.Args[2:], " "))
		if prompt == "" {
			exitOnError(chat.ErrEmptyPrompt)
		}
		roomID, err := client.EnsureRoom(ctx)
		exitOnError(err)
		exitOnError(client.Ask(ctx, roomID, prompt))
		fmt.Printf("Sent to room %s; run 'trainctl watch' for the reply\n", roomID)

	case "upload":
		if len(os.Args) < 5 {
			fmt.Fprintln(os.Stderr, "Usage: trainctl upload <description> <document_type> <file>...")
			os.Exit(1)
		}
		roomID, err := client.EnsureRoom(ctx)
		exitOnError(err)

		req := remote.UploadRequest{FileName: os.Args[2], DocumentType: os.Args[3]}
		for _, path := range os.Args[4:] {
			f, err := upload.NewDiskFile(path)
			exitOnError(err)
			req.Files = append(req.Files, remote.UploadFile{Name: f.Name(), Open: f.Open})
		}
		exitOnError(client.Upload(ctx, roomID, req))
		fmt.Printf("Uploaded %d file(s) to room %s\n", len(req.Files), roomID)

	case "dislike":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: trainctl dislike <id>")
			os.Exit(1)
		}
		exitOnError(client.Dislike(ctx, os.Args[2]))
		fmt.Printf("Acknowledged feedback %s\n", os.Args[2])

	case "watch":
		var roomID models.RoomID
		if len(os.Args) > 2 {
			roomID = models.RoomID(os.Args[2])
		} else {
			roomID, err = client.EnsureRoom(ctx)
			exitOnError(err)
		}
		exitOnError(watch(ctx, cfg, roomID))

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

// watch prints the room's stream until interrupted or the connection drops.
func watch(ctx context.Context, cfg *config.Config, roomID models.RoomID) error {
	reconciler := chat.NewReconciler(chat.ReconcilerOptions{Dedupe: cfg.DedupeMessages}, zerolog.Nop())
	dropped := make(chan struct{})

	mgr := stream.NewManager(stream.NewWebSocketDialer(cfg.StreamURL, cfg.APIToken), func(roomID models.RoomID, raw []byte) {
		msg := reconciler.Accept(roomID, raw)
		if msg == nil {
			return
		}
		ts := msg.Timestamp.Local().Format("2006-01-02 15:04:05")
		fmt.Printf("[%s] %s: %s\n", ts, msg.DisplayName, chat.PlainText(msg.Text))
	}, zerolog.Nop())
	mgr.OnStateChange(func(state stream.State, _ models.RoomID) {
		if state == stream.StateDisconnected {
			select {
			case <-dropped:
			default:
				close(dropped)
			}
		}
	})
	defer mgr.Close()

	if err := mgr.Bind(ctx, roomID); err != nil {
		return err
	}
	fmt.Printf("Watching room %s (Ctrl-C to stop)\n", roomID)

	select {
	case <-ctx.Done():
		return nil
	case <-dropped:
		return mgr.LastError()
	}
}

func usage() {
	fmt.Println(`trainctl - Training room command line client

Usage: trainctl <command> [options]

Commands:
  room                                        Create or fetch your training room
  ask <prompt>                                Send a prompt to the assistant
  upload <description> <type> <file>...       Upload documents in one request
  dislike <id>                                Acknowledge a feedback trigger
  watch [room]                                Print the room's message stream

Environment:
  API_BASE_URL  Training service URL (default: http://localhost:8000)
  STREAM_URL    Stream endpoint (default: derived from API_BASE_URL)
  API_TOKEN     Bearer token for the training service`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
