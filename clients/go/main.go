// Whiteboard CLI - command line client for the whiteboard server
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/eldtechnologies/whiteboard/clients/go/whiteboard"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	client := whiteboard.NewClient(os.Getenv("WHITEBOARD_URL"))
	cmd := os.Args[1]

	switch cmd {
	case "health":
		resp, err := client.Health()
		exitOnError(err)
		printJSON(resp)

	case "signup", "login":
		if len(os.Args) < 4 {
			fmt.Fprintf(os.Stderr, "Usage: whiteboard %s <username> <password>\n", cmd)
			os.Exit(1)
		}
		var user *whiteboard.User
		var err error
		if cmd == "signup" {
			user, err = client.CreateUser(os.Args[2], os.Args[3])
		} else {
			user, err = client.Login(os.Args[2], os.Args[3])
		}
		exitOnError(err)
		exitOnError(client.SaveConfig())
		fmt.Printf("Signed in as: %s\n", user.Username)

	case "save":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: whiteboard save <room> <file.png> [username]")
			os.Exit(1)
		}
		png, err := os.ReadFile(os.Args[3])
		exitOnError(err)
		username := client.Username
		if len(os.Args) > 4 {
			username = os.Args[4]
		}
		snap, err := client.SaveSession(os.Args[2], whiteboard.PNGDataURL(png), username)
		exitOnError(err)
		fmt.Printf("Saved snapshot %d of room %s\n", snap.ID, snap.RoomID)

	case "load":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: whiteboard load <room> <out.png>")
			os.Exit(1)
		}
		snap, err := client.LoadSession(os.Args[2])
		exitOnError(err)
		_, data, err := snap.Image()
		exitOnError(err)
		exitOnError(os.WriteFile(os.Args[3], data, 0644))
		fmt.Printf("Wrote %s (saved %s)\n", os.Args[3], snap.CreatedAt.Format("2006-01-02 15:04:05"))

	case "rooms":
		username := client.Username
		if len(os.Args) > 2 {
			username = os.Args[2]
		}
		if username == "" {
			fmt.Fprintln(os.Stderr, "Usage: whiteboard rooms <username>")
			os.Exit(1)
		}
		rooms, err := client.ListUserSessions(username)
		exitOnError(err)
		for _, r := range rooms {
			fmt.Printf("  %s\n", r)
		}

	case "watch":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: whiteboard watch <room>")
			os.Exit(1)
		}
		watch(client, os.Args[2])

	case "line":
		if len(os.Args) < 8 {
			fmt.Fprintln(os.Stderr, "Usage: whiteboard line <room> <x0> <y0> <x1> <y1> <color>")
			os.Exit(1)
		}
		var coords [4]float64
		for i := range coords {
			v, err := strconv.ParseFloat(os.Args[3+i], 64)
			exitOnError(err)
			coords[i] = v
		}
		conn, err := whiteboard.Dial(context.Background(), client.WebSocketURL())
		exitOnError(err)
		defer conn.Close()
		exitOnError(conn.Draw(os.Args[2], whiteboard.Segment{
			X0: coords[0], Y0: coords[1], X1: coords[2], Y1: coords[3], Color: os.Args[7],
		}))
		fmt.Println("Drawn")

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func watch(client *whiteboard.Client, roomID string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conn, err := whiteboard.Dial(ctx, client.WebSocketURL())
	exitOnError(err)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	exitOnError(conn.JoinRoom(roomID))
	fmt.Printf("Watching room %s (Ctrl-C to stop)\n", roomID)

	for {
		ev, err := conn.ReadEvent()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			exitOnError(err)
		}
		switch ev.Name {
		case whiteboard.EventInitializeCanvas:
			fmt.Printf("initializeCanvas: %d segments\n", len(ev.Segments))
		case whiteboard.EventDraw:
			s := ev.Draw.Segment
			fmt.Printf("draw: (%g,%g) -> (%g,%g) %s\n", s.X0, s.Y0, s.X1, s.Y1, s.Color)
		case whiteboard.EventClearCanvas:
			fmt.Println("clearCanvas")
		}
	}
}

func usage() {
	fmt.Println(`Whiteboard CLI

Usage: whiteboard <command> [options]

Commands:
  signup <username> <password>        Create an account
  login <username> <password>         Sign in
  save <room> <file.png> [username]   Save a PNG as the room's snapshot
  load <room> <out.png>               Download the room's latest snapshot
  rooms [username]                    List rooms a user saved to
  watch <room>                        Stream live drawing events
  line <room> x0 y0 x1 y1 <color>     Draw one segment
  health                              Check server health

Environment:
  WHITEBOARD_URL      Server URL (default: http://localhost:8080)
  WHITEBOARD_CONFIG   Config directory (default: ~/.whiteboard)`)
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
