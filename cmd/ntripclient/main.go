package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/matst80/ntriprelay/internal/ntrip"
	"github.com/matst80/ntriprelay/internal/obs"
	"github.com/matst80/ntriprelay/internal/ratelimit"
	"github.com/matst80/ntriprelay/internal/relay"
	"github.com/matst80/ntriprelay/internal/sink"
	"github.com/matst80/ntriprelay/internal/stats"
)

const (
	exitOK        = 0
	exitUsage     = 2
	exitHandshake = 2
	exitOther     = 3
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	if cfg.Debug {
		obs.EnableDebug(true)
	}
	defer obs.Sync()
	if cfg.Host == "" {
		fmt.Fprintln(os.Stderr, "--host is required")
		flag.Usage()
		return exitUsage
	}

	client, err := ntrip.New(cfg.clientConfig())
	if err != nil {
		obs.Error("client.config", obs.Fields{"err": err})
		return exitOther
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp := stats.NewThroughput()
	state := newAppState(client.Config(), tp)
	defer state.setClosing()
	if cfg.MetricsAddr != "" {
		go startMetricsServer(ctx, cfg.MetricsAddr, state)
	}

	mirrors := []sink.Sink{tp}
	if cfg.RedisAddr != "" {
		rs, err := sink.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.redisChannel(client.Config().Mountpoint))
		if err != nil {
			obs.Error("client.redis", obs.Fields{"err": err, "addr": cfg.RedisAddr})
			_ = tp.Close()
			return exitOther
		}
		obs.Info("client.redis.mirror", obs.Fields{"addr": cfg.RedisAddr, "channel": rs.Channel()})
		mirrors = append(mirrors, rs)
	}

	obs.Info("client.start", obs.Fields{"caster": client.Config().Addr(), "mountpoint": client.Config().Mountpoint, "version": client.Config().Version, "tls": client.Config().UseTLS})
	stream, err := client.Stream(ctx, cfg.ChunkSize)
	if err != nil {
		for _, m := range mirrors {
			_ = m.Close()
		}
		return exitCode(err)
	}
	state.setStream(stream)
	src := sink.Tee(ctx, stream, mirrors...)
	defer src.Close()

	if cfg.ServePort > 0 {
		return serveRelay(ctx, src, stream, state, tp)
	}
	return writeOutput(ctx, src, stream)
}

func serveRelay(ctx context.Context, src relay.Source, stream *ntrip.Stream, state *appState, tp *stats.Throughput) int {
	var limiter *ratelimit.RateLimiter
	if cfg.RelayConnRate > 0 || cfg.RelayPeerConnRate > 0 {
		limiter = ratelimit.NewRateLimiter(cfg.RelayConnRate, cfg.RelayPeerConnRate, cfg.RelayBurst)
	}
	srv := relay.New(relay.Config{
		Addr:         cfg.relayAddr(),
		Backlog:      5,
		WriteTimeout: cfg.RelayWriteTimeout,
		Limiter:      limiter,
		Meter:        tp,
	})
	state.setRelay(srv)
	obs.Info("client.relay", obs.Fields{"addr": cfg.relayAddr()})
	if err := srv.Serve(ctx, src); err != nil {
		obs.Error("client.relay.failed", obs.Fields{"err": err})
		return exitOther
	}
	return streamExit(stream)
}

func writeOutput(ctx context.Context, src sink.Source, stream *ntrip.Stream) int {
	var out sink.Sink
	if cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			obs.Error("client.output", obs.Fields{"err": err, "path": cfg.Output})
			return exitOther
		}
		out = sink.NewWriter(f)
	} else {
		out = sink.NewWriterNoClose(os.Stdout)
	}
	defer out.Close()

	for {
		chunk, err := src.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return exitCode(err)
			}
			break
		}
		if err := out.Write(ctx, chunk); err != nil {
			obs.Error("client.output.write", obs.Fields{"err": err})
			return exitOther
		}
	}
	return streamExit(stream)
}

func streamExit(stream *ntrip.Stream) int {
	if err := stream.Err(); err != nil {
		return exitCode(err)
	}
	return exitOK
}

// exitCode maps a session error to the process exit status. Cancellation is not an error.
func exitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return exitOK
	}
	obs.Error("client.error", obs.Fields{"err": err})
	var he *ntrip.HandshakeError
	if errors.As(err, &he) {
		return exitHandshake
	}
	return exitOther
}
