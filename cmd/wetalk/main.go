package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/wetalk-app/wetalk-sync.git/internal/api"
	"github.com/wetalk-app/wetalk-sync.git/internal/channel"
	"github.com/wetalk-app/wetalk-sync.git/internal/config"
	"github.com/wetalk-app/wetalk-sync.git/internal/directory"
	"github.com/wetalk-app/wetalk-sync.git/internal/engine"
	"github.com/wetalk-app/wetalk-sync.git/internal/logger"
	"github.com/wetalk-app/wetalk-sync.git/internal/model"
	"github.com/wetalk-app/wetalk-sync.git/internal/presence"
	"github.com/wetalk-app/wetalk-sync.git/internal/rooms"
	"github.com/wetalk-app/wetalk-sync.git/internal/store"
)

// channelURL builds the websocket URL with the identity escaped into the
// query string.
func channelURL(base, userID, displayName string) string {
	q := url.Values{"userId": {userID}}
	if displayName != "" {
		q.Set("name", displayName)
	}
	return base + "?" + q.Encode()
}

func main() {
	configPath := flag.String("config", "", "path to yaml config")
	flag.Parse()

	_ = godotenv.Load()
	logger.Init()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Log.Error("load config", "err", err)
		return
	}
	if cfg.Identity.ID == "" {
		logger.Log.Error("identity.id is required (WETALK_IDENTITY_ID)")
		return
	}

	session := model.Session{IdentityID: cfg.Identity.ID, DisplayName: cfg.Identity.DisplayName}
	collab := api.New(cfg.Server.HTTPURL)

	ch := channel.NewClient(channelURL(cfg.Server.WSURL, cfg.Identity.ID, cfg.Identity.DisplayName))

	dir := directory.New(collab, session.IdentityID)
	st := store.New()
	rm := rooms.New(ch)
	pr := presence.New(presence.BlockStoreAndShow)
	eng := engine.New(session, ch, collab, dir, st, rm, pr)

	ch.Subscribe(model.EventReceiveMessage, eng.HandleReceive)
	ch.OnReconnect(eng.Recover)

	if err := ch.Connect(cfg.Identity.Token); err != nil {
		logger.Log.Error("connect", "err", err)
		return
	}
	defer ch.Close()

	if err := eng.Start(); err != nil {
		logger.Log.Error("start session", "err", err)
		return
	}

	fmt.Println("commands: /list, /select <id>, /star <id>, /archive <id>, /quit; anything else sends to the active conversation")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/quit":
			eng.Logout()
			return
		case line == "/list":
			for _, conv := range dir.Chats() {
				fmt.Printf("%-12s %-8s unread=%d  %s\n", conv.ID, conv.Kind, conv.Unread, conv.LastPreview)
			}
		case strings.HasPrefix(line, "/select "):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/select "))
			if err := eng.Select(id); err != nil {
				fmt.Println("select:", err)
				continue
			}
			for _, msg := range st.Get(id) {
				fmt.Printf("[%s] %s\n", msg.SenderID, msg.Text)
			}
		case strings.HasPrefix(line, "/star "):
			if err := dir.ToggleStar(strings.TrimSpace(strings.TrimPrefix(line, "/star "))); err != nil {
				fmt.Println("star:", err)
			}
		case strings.HasPrefix(line, "/archive "):
			if err := dir.ToggleArchive(strings.TrimSpace(strings.TrimPrefix(line, "/archive "))); err != nil {
				fmt.Println("archive:", err)
			}
		default:
			if _, err := eng.Send(line); err != nil {
				fmt.Println("send:", err)
			}
		}
	}
}
