package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/leandrodaf/midibridge/internal/config"
	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/sdk/bridge"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

type delivery struct {
	event contracts.RawEvent
	at    contracts.Instant
}

func main() {
	log := logger.NewZapLogger()

	opts := []contracts.Option{
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
		contracts.WithEventFilter(contracts.EventFilter{
			Commands: []contracts.MIDICommand{contracts.NoteOn, contracts.NoteOff},
		}),
	}
	if path := os.Getenv("MIDIBRIDGE_CONFIG"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			log.Error("Failed to load configuration", log.Field().Error("error", err))
			return
		}
		opts = append(opts, cfg.Options()...)
	}

	// The consumer runs on the engine cycle; it hands events off instead of logging inline.
	eventChannel := make(chan delivery, 100)
	opts = append(opts, contracts.WithConsumer(func(event contracts.RawEvent, at contracts.Instant) {
		select {
		case eventChannel <- delivery{event: event, at: at}:
		default:
		}
	}))

	b, err := bridge.NewBridge(opts...)
	if err != nil {
		log.Error("Failed to initialize MIDI bridge", log.Field().Error("error", err))
		return
	}
	defer b.Close()

	if err = b.Open(); err != nil {
		log.Error("Failed to open MIDI bridge", log.Field().Error("error", err))
		return
	}
	if err = b.Start(); err != nil {
		log.Error("Failed to start MIDI bridge", log.Field().Error("error", err))
		return
	}

	go func() {
		for d := range eventChannel {
			log.Info("MIDI Event",
				log.Field().Int64("TimestampUs", d.at.Microseconds()),
				log.Field().String("Message", d.event.Msg.String()),
			)
		}
	}()

	fmt.Printf("Bridging MIDI events as %q... Press Ctrl+C to exit.\n", b.Name())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-ctx.Done()

	stats := b.Stats()
	log.Info("MIDI bridge stopping",
		log.Field().Int64("delivered", stats.Delivered),
		log.Field().Int64("filtered", stats.Filtered),
		log.Field().Int64("resets", stats.Resets))
}
