package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/NicolasHaas/roomchat/pkg/client"
	"github.com/NicolasHaas/roomchat/pkg/logging"
	"github.com/NicolasHaas/roomchat/pkg/protocol"
	"github.com/NicolasHaas/roomchat/pkg/version"
)

const help = `Commands:
  /register <user> <password>   create an account
  /login <user> <password>      log in
  /create <name>                create a room and enter it
  /join <room-id|bookmark>      enter a room
  /leave                        leave the current room
  /bookmark                     save the current room
  /rooms                        list saved rooms for this server
  /status                       show the connection state
  /quit                         disconnect and exit
Anything else is sent to the current room.`

func main() {
	settings := client.LoadSettings()

	host := flag.String("host", settings.Host, "Server host")
	port := flag.Int("port", settings.Port, "Server port")
	save := flag.Bool("save", false, "Remember host, port and username as defaults")
	logLevel := flag.String("log-level", "warn", "Log level: "+logging.LevelNames())
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	if _, err := logging.Setup(logging.Options{Level: *logLevel, Output: os.Stderr, Component: "client"}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	addr := net.JoinHostPort(*host, strconv.Itoa(*port))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	c, err := client.Dial(dialCtx, addr)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to %s: %v\n", addr, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	bookmarks := client.NewBookmarkStore()
	if err := bookmarks.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load bookmarks: %v\n", err)
	}

	c.SetEventHandler(func(msg protocol.Message) { printEvent(os.Stdout, msg) })
	c.StartReceiving()
	fmt.Printf("Connected to %s. Type /help for commands.\n", addr)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	sh := &shell{c: c, addr: addr, bookmarks: bookmarks, out: os.Stdout}
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Done():
			fmt.Println("Disconnected from server")
			return
		case line, ok := <-lines:
			if !ok || !sh.run(line) {
				if *save {
					settings.Host, settings.Port, settings.Username = *host, *port, c.Username()
					if err := settings.Save(); err != nil {
						fmt.Fprintf(os.Stderr, "Failed to save settings: %v\n", err)
					}
				}
				return
			}
		}
	}
}

type shell struct {
	c         *client.Client
	addr      string
	bookmarks *client.BookmarkStore
	out       io.Writer
}

// run executes one input line. It returns false when the user asked to quit.
func (s *shell) run(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	if !strings.HasPrefix(line, "/") {
		s.report(s.c.Send(line))
		return true
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		return false
	case "/help":
		fmt.Fprintln(s.out, help)
	case "/status":
		id, name := s.c.Room()
		fmt.Fprintf(s.out, "State: %s user=%q room=%q (%s)\n", s.c.State(), s.c.Username(), name, id)
	case "/register", "/login":
		if len(fields) != 3 {
			fmt.Fprintf(s.out, "Usage: %s <user> <password>\n", fields[0])
			return true
		}
		if fields[0] == "/register" {
			s.report(s.c.Register(fields[1], fields[2]))
		} else {
			s.report(s.c.Login(fields[1], fields[2]))
		}
	case "/create":
		name := strings.TrimSpace(strings.TrimPrefix(line, "/create"))
		if name == "" {
			fmt.Fprintln(s.out, "Usage: /create <name>")
			return true
		}
		s.report(s.c.CreateRoom(name))
	case "/join":
		if len(fields) != 2 {
			fmt.Fprintln(s.out, "Usage: /join <room-id|bookmark>")
			return true
		}
		roomID := fields[1]
		if b := s.bookmarks.Find(s.addr, roomID); b != nil {
			roomID = b.RoomID
			s.bookmarks.Touch(s.addr, roomID, time.Now().Unix())
			_ = s.bookmarks.Save()
		}
		s.report(s.c.JoinRoom(roomID))
	case "/leave":
		if err := s.c.LeaveRoom(); err != nil {
			s.report(err)
			return true
		}
		fmt.Fprintln(s.out, "Left room")
	case "/bookmark":
		id, name := s.c.Room()
		if id == "" {
			s.report(client.ErrNotInRoom)
			return true
		}
		s.bookmarks.Add(client.Bookmark{Name: name, Addr: s.addr, RoomID: id, LastUsed: time.Now().Unix()})
		if err := s.bookmarks.Save(); err != nil {
			s.report(err)
			return true
		}
		fmt.Fprintf(s.out, "Saved %s (%s)\n", name, id)
	case "/rooms":
		saved := s.bookmarks.ForServer(s.addr)
		if len(saved) == 0 {
			fmt.Fprintln(s.out, "No saved rooms")
		}
		for _, b := range saved {
			fmt.Fprintf(s.out, "  %-20s %s\n", b.Name, b.RoomID)
		}
	default:
		fmt.Fprintf(s.out, "Unknown command %s. Type /help for commands.\n", fields[0])
	}
	return true
}

func (s *shell) report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, client.ErrNotAuthenticated):
		fmt.Fprintln(s.out, "You must log in first")
	case errors.Is(err, client.ErrNotInRoom):
		fmt.Fprintln(s.out, "You are not in a room")
	default:
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}

func printEvent(w io.Writer, msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.AuthResponse:
		if m.Status == protocol.StatusSuccess {
			fmt.Fprintln(w, "Login successful")
		} else {
			fmt.Fprintln(w, "Login failed: Invalid username or password")
		}
	case *protocol.RegisterResponse:
		switch m.Status {
		case protocol.StatusSuccess:
			fmt.Fprintln(w, "Registration successful")
		case protocol.StatusUserExists:
			fmt.Fprintln(w, "Registration failed: Username already exists")
		default:
			fmt.Fprintln(w, "Registration failed: Internal error")
		}
	case *protocol.CreateRoomResponse:
		if m.Status == protocol.StatusSuccess {
			fmt.Fprintf(w, "Room created successfully\nRoom ID: %s\n", m.RoomID)
		} else {
			fmt.Fprintln(w, "Failed to create room")
		}
	case *protocol.JoinRoomResponse:
		if m.Status == protocol.StatusSuccess {
			fmt.Fprintf(w, "Joined room: %s\nRoom ID: %s\n", m.RoomName, m.RoomID)
		} else {
			fmt.Fprintln(w, "Failed to join room: Room not found")
		}
	case *protocol.ChatMessage:
		fmt.Fprintf(w, "[%s]: %s\n", m.Username, m.Text)
	case *protocol.ErrorMessage:
		fmt.Fprintf(w, "Error: %s\n", m.Text)
	}
}
