// Command probe joins an annotation room as a sync client and logs what it
// sees. With -draw it also sends one short demo stroke.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"score-annotator/internal/config"
	"score-annotator/internal/logger"
	"score-annotator/internal/protocol"
	"score-annotator/internal/syncclient"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "sync server websocket url")
	room := flag.String("room", "demo-song", "room (song) id to join")
	name := flag.String("name", "probe", "display name")
	color := flag.String("color", "#1e88e5", "profile color")
	draw := flag.Bool("draw", false, "send a demo stroke after joining")
	flag.Parse()

	cfg := config.Load()
	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := syncclient.New(syncclient.Options{
		URL: *url,
		Profile: protocol.Participant{
			ProfileID:    uuid.NewString(),
			ProfileName:  *name,
			ProfileColor: *color,
		},
		RoomID: *room,
		Logger: zl,
		OnChange: func(s syncclient.Snapshot) {
			zl.Info("state",
				zap.Int("participants", len(s.Participants)),
				zap.Int("cursors", len(s.Cursors)),
				zap.Int("strokes", len(s.Strokes)),
			)
		},
		OnStatus: func(st syncclient.Status) {
			zl.Info("status", zap.String("status", string(st)))
		},
	})

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = client.Connect(dialCtx)
	cancel()
	if err != nil {
		zl.Fatal("connect failed", zap.Error(err))
	}
	defer client.Close()

	if *draw {
		drawDemo(client)
	}

	<-ctx.Done()
	client.SendLeave()
}

// drawDemo sends a short diagonal line.
func drawDemo(c *syncclient.Client) {
	strokeID := uuid.NewString()
	c.SendStrokeStart(strokeID, "pen", "#e53935", 2)

	path := "M0,0"
	for i := 1; i <= 20; i++ {
		x, y := float64(i*5), float64(i*3)
		c.SendStrokePoint(strokeID, protocol.Point{X: x, Y: y})
		path += fmt.Sprintf(" L%g,%g", x, y)
		time.Sleep(10 * time.Millisecond)
	}
	c.SendStrokeEnd(strokeID, path)
}
