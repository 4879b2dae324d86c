// Command ccnd runs the CCN forwarding daemon: the single-threaded
// dispatcher loop driving the face table, FIB/PIT/Content Store, and
// the internal client, matching fw/cmd/cmd.go's CmdYaNFD shape.
package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/ccnx-go/ccnd/internal/config"
	"github.com/ccnx-go/ccnd/internal/corelog"
	"github.com/ccnx-go/ccnd/internal/dispatch"
	"github.com/ccnx-go/ccnd/internal/face"
	"github.com/ccnx-go/ccnd/internal/metrics"
	"github.com/ccnx-go/ccnd/internal/mgmt"
	"github.com/ccnx-go/ccnd/internal/sched"
	"github.com/ccnx-go/ccnd/internal/security"
	"github.com/ccnx-go/ccnd/internal/table"
	"github.com/ccnx-go/ccnd/internal/wire"
)

type logName string

func (n logName) String() string { return string(n) }

const logMain = logName("ccnd")

// version is set by -ldflags at release build time; when not set it
// prints as "dev".
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "ccnd CONFIG-FILE",
		Short:   "CCN forwarding daemon",
		Version: version,
		Args:    cobra.ExactArgs(1),
		RunE:    run,
	}
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the daemon version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	undo, err := maxprocs.Set(maxprocs.Logger(func(f string, a ...any) {
		corelog.Log.Debug(logMain, fmt.Sprintf(f, a...))
	}))
	if err != nil {
		corelog.Log.Warn(logMain, "automaxprocs: unable to set GOMAXPROCS", "err", err)
	} else {
		defer undo()
	}

	cfg, err := config.Load(args[0])
	if err != nil {
		corelog.Log.Error(logMain, "startup failed", "err", err)
		return err
	}
	if lvl, lerr := corelog.ParseLevel(strings.ToUpper(cfg.Core.LogLevel)); lerr == nil {
		corelog.Log.SetLevel(lvl)
	}

	d, err := newDaemon(cfg)
	if err != nil {
		corelog.Log.Error(logMain, "startup failed", "err", err)
		return err
	}
	defer d.close()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
		http.ListenAndServe("localhost:9401", mux)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		corelog.Log.Info(logMain, "received signal, shutting down", "signal", sig)
		d.dispatcher.Stop()
	}()

	if err := d.dispatcher.Run(); err != nil {
		corelog.Log.Error(logMain, "dispatcher exited", "err", err)
		return err
	}
	return nil
}

// daemon owns every long-lived component created at startup, so
// close() can unwind them in reverse order (spec.md §6 "Local listener
// ... removed on exit").
type daemon struct {
	cfg        *config.Config
	tree       *table.NameTree
	pit        *table.PIT
	cs         *table.CS
	faces      *face.Table
	sched      *sched.Scheduler
	forwarder  *dispatch.Forwarder
	dispatcher *dispatch.Dispatcher
	signer     *security.Signer
	mgmtClient *mgmt.Client
	registry   *prometheus.Registry

	unixLn *face.StreamListener
	tcpLn  *face.StreamListener
	udpLn  *face.UDPListener
	wsLn   *face.WebsocketListener
}

func newDaemon(cfg *config.Config) (*daemon, error) {
	signer, err := security.NewSigner()
	if err != nil {
		return nil, fmt.Errorf("keystore init: %w", err)
	}

	tree := table.NewNameTree()
	pit := table.NewPIT()
	s := sched.New()
	rnd := rand.New(rand.NewSource(1))
	cs := table.NewCS(cfg.Core.ContentStoreSize, s, rnd)
	faces := face.NewTable()

	sender := dispatch.NewFaceSender(faces, cs, s, rnd)
	fwd := dispatch.NewForwarder(tree, pit, cs, s, sender, rnd)
	fwd.InterestLifetimeUs = int64(cfg.Core.InterestLifetimeMs) * 1000

	var unixLn *face.StreamListener
	if cfg.Faces.UnixSocketPath != "" {
		os.Remove(cfg.Faces.UnixSocketPath)
		unixLn, err = face.ListenUnix(cfg.Faces.UnixSocketPath)
		if err != nil {
			return nil, fmt.Errorf("listen unix %s: %w", cfg.Faces.UnixSocketPath, err)
		}
	}
	var tcpLn *face.StreamListener
	if cfg.Faces.TCPListen != "" {
		tcpLn, err = face.ListenTCP(cfg.Faces.TCPListen)
		if err != nil {
			return nil, fmt.Errorf("listen tcp %s: %w", cfg.Faces.TCPListen, err)
		}
	}
	var udpLn *face.UDPListener
	if cfg.Faces.UDPListen != "" {
		udpLn, err = face.ListenUDP(cfg.Faces.UDPListen)
		if err != nil {
			return nil, fmt.Errorf("listen udp %s: %w", cfg.Faces.UDPListen, err)
		}
	}
	var wsLn *face.WebsocketListener
	if cfg.Faces.WebsocketListen != "" {
		wsLn, err = face.ListenWebsocket(cfg.Faces.WebsocketListen, "/ccn")
		if err != nil {
			return nil, fmt.Errorf("listen websocket %s: %w", cfg.Faces.WebsocketListen, err)
		}
	}

	d, err := dispatch.NewDispatcher(faces, fwd, unixLn, tcpLn, udpLn, wsLn)
	if err != nil {
		return nil, fmt.Errorf("epoll init: %w", err)
	}

	mgmtClient := mgmt.NewClient(tree, faces, cs, signer, nil)
	wireFace0(faces, tree, fwd, mgmtClient)

	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewCollector(cs, pit, tree, faces))

	scheduleAgeing(s, tree)
	scheduleFaceReaper(s, faces, d)

	return &daemon{
		cfg: cfg, tree: tree, pit: pit, cs: cs, faces: faces, sched: s,
		forwarder: fwd, dispatcher: d, signer: signer, mgmtClient: mgmtClient,
		registry: registry,
		unixLn:   unixLn, tcpLn: tcpLn, udpLn: udpLn, wsLn: wsLn,
	}, nil
}

// wireFace0 enrolls the internal client's loopback face and points the
// FIB at it for every control prefix (spec.md §9 "internal client"):
// an outgoing Interest that resolves to face0 is handed straight to
// mgmt.Client instead of a socket, and the signed reply re-enters
// forwarding as a ContentObject received on that same face.
func wireFace0(faces *face.Table, tree *table.NameTree, fwd *dispatch.Forwarder, client *mgmt.Client) {
	var face0ID uint64
	onSend := func(raw []byte) {
		var dec wire.Decoder
		dec.Feed(raw)
		env, ok, err := dec.Next()
		if err != nil || !ok || env.Kind != wire.KindInterest {
			return
		}
		co, handled := client.Handle(face0ID, true, env.Interest)
		if !handled {
			return
		}
		fwd.HandleContentObject(face0ID, co)
	}
	f0 := face.NewFace(face.NewLoopbackTransport(onSend), face.FlagLocal|face.FlagFriendly|face.FlagPermanent, 65535)
	id, ok := faces.Enroll(f0)
	if !ok {
		corelog.Log.Fatal(logMain, "face table exhausted enrolling face0")
	}
	face0ID = id

	// the largest 32-bit lifetime (about 68 years), so the periodic
	// ageing pass does not drop face0's control-prefix entries.
	const face0LifetimeSeconds = 1<<31 - 1
	for _, prefix := range []string{"/ccn/ping", "/ccn/reg/self", "/ccn/" + client.Signer.NodeIDHex()} {
		pe := tree.Seek(wire.NameFromStr(prefix), -1)
		pe.AddForwardingEntry(face0ID, table.FlagActive|table.FlagChildInherit, face0LifetimeSeconds)
	}
}

// scheduleAgeing arms the recurring forwarding-entry expiry and prefix
// reaping pass (spec.md §3 "decremented every 5s by the ageing task",
// §4.4 reaping) — previously only ever driven by fib_test.go.
func scheduleAgeing(s *sched.Scheduler, tree *table.NameTree) {
	const periodUs = table.AgeingPeriodSeconds * 1_000_000
	var cb sched.Callback
	cb = func(cancelled bool) int64 {
		if cancelled {
			return 0
		}
		tree.Age()
		return periodUs
	}
	s.Schedule(periodUs, cb)
}

// faceIdleCheckPeriodSeconds is how often the idle-datagram-face
// reaper samples ActivityCount; spec.md §5 names "two consecutive
// inactivity passes" but leaves the pass interval to the
// implementation, so this is chosen independently of the 5 s ageing
// period to spread the two periodic scans apart.
const faceIdleCheckPeriodSeconds = 60

// faceIdleRoundsBeforeReap mirrors spec.md §8 scenario 6's "two idle
// passes".
const faceIdleRoundsBeforeReap = 2

// scheduleFaceReaper arms the recurring datagram-face liveness check
// (spec.md §5, §8 scenario 6): a non-PERMANENT datagram face whose
// ActivityCount has not moved across two consecutive passes is torn
// down, so a disappeared UDP peer's slot is freed for reuse with a
// bumped generation.
func scheduleFaceReaper(s *sched.Scheduler, faces *face.Table, d *dispatch.Dispatcher) {
	const periodUs = faceIdleCheckPeriodSeconds * 1_000_000
	type idleState struct {
		lastActivity int
		idleRounds   int
	}
	state := make(map[uint64]idleState)
	var cb sched.Callback
	cb = func(cancelled bool) int64 {
		if cancelled {
			return 0
		}
		seen := make(map[uint64]bool)
		var toReap []uint64
		faces.ForEach(func(f *face.Face) {
			if f.Kind() != face.KindDatagram || f.Flags.Has(face.FlagPermanent) {
				return
			}
			seen[f.ID] = true
			st := state[f.ID]
			if f.ActivityCount == st.lastActivity {
				st.idleRounds++
			} else {
				st.lastActivity = f.ActivityCount
				st.idleRounds = 0
			}
			if st.idleRounds >= faceIdleRoundsBeforeReap {
				toReap = append(toReap, f.ID)
				delete(state, f.ID)
				return
			}
			state[f.ID] = st
		})
		for id := range state {
			if !seen[id] {
				delete(state, id)
			}
		}
		for _, id := range toReap {
			d.ReapIdleFace(id)
		}
		return periodUs
	}
	s.Schedule(periodUs, cb)
}

func (d *daemon) close() {
	if d.unixLn != nil {
		d.unixLn.Close()
		os.Remove(d.cfg.Faces.UnixSocketPath)
	}
	if d.tcpLn != nil {
		d.tcpLn.Close()
	}
	if d.udpLn != nil {
		d.udpLn.Close()
	}
	if d.wsLn != nil {
		d.wsLn.Close()
	}
	d.dispatcher.Close()
}
