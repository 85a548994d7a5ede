// Command voice-probe runs one bridge in-process against the configured voice
// backend and prints every snapshot it publishes.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/bytedance/sonic"

	"github.com/jerhadf/voice-computer-use/bridge"
	"github.com/jerhadf/voice-computer-use/config"
	"github.com/jerhadf/voice-computer-use/host"
	"github.com/jerhadf/voice-computer-use/messages"
	"github.com/jerhadf/voice-computer-use/session"
)

// printer is a bridge.Host that logs instead of writing to a socket.
type printer struct {
	cursor host.EventCursor
	opened chan struct{}
}

func (p *printer) SetValue(v messages.ComponentValue) {
	log.Printf("📸 Snapshot: %d event(s), muted=%v connected=%v", len(v.Events), v.IsMuted, v.IsConnected)
	for _, ev := range p.cursor.Next(v.Events) {
		raw, _ := sonic.MarshalString(ev)
		log.Printf("   %s %s", ev.Listenable(), raw)
		if ev.Type == messages.EventOpened {
			select {
			case <-p.opened:
			default:
				close(p.opened)
			}
		}
	}
}

func (p *printer) RenderDebug(view messages.DebugPayload) {
	log.Printf("🐞 Debug view:\n%s", view.Text)
}

func (p *printer) ReportViolation(v bridge.ProtocolViolation) {
	log.Printf("❌ Violation: %v", v)
}

func main() {
	text := flag.String("text", "Hello! Say hi back in one sentence.", "user input sent once the session opens")
	wait := flag.Duration("wait", 10*time.Second, "how long to listen after sending")
	debug := flag.Bool("debug", false, "print the bridge debug view")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	newVoice, err := session.NewVoiceFactory(cfg)
	if err != nil {
		log.Fatalf("Failed to set up %s backend: %v", cfg.VoiceBackend, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	args := &messages.Args{
		Commands: messages.CommandList{messages.Connect{}},
		ListenTo: append([]string{"message." + messages.MessageAssistantMessage}, bridge.DefaultListenTo...),
		Debug:    *debug,
	}
	sess, err := newVoice(ctx, args)
	if err != nil {
		log.Fatalf("Failed to create %s session: %v", cfg.VoiceBackend, err)
	}

	p := &printer{opened: make(chan struct{})}
	b := bridge.New(sess, p, bridge.WithID("probe"), bridge.WithEchoToken(cfg.ClearAudioEcho))
	b.Start()
	defer b.Close()

	log.Printf("🔌 Connecting to %s backend...", cfg.VoiceBackend)
	if err := b.Update(ctx, args); err != nil {
		log.Fatalf("Failed to send connect: %v", err)
	}

	select {
	case <-p.opened:
	case <-ctx.Done():
		return
	case <-time.After(15 * time.Second):
		log.Fatal("⏰ Session did not open")
	}

	// Same list plus one command; only the new one is applied.
	args.Commands = append(args.Commands, messages.SendUserInput{Message: *text})
	if err := b.Update(ctx, args); err != nil {
		log.Fatalf("Failed to send text: %v", err)
	}

	log.Println("Waiting for response...")
	select {
	case <-ctx.Done():
	case <-b.Done():
	case <-time.After(*wait):
	}
	log.Printf("Done: command cursor %d, event cursor %d", b.State().CommandCursor, b.State().EventCursor)
}
