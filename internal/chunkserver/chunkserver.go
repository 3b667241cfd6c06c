// Package chunkserver implements the GFS-inspired data-path node: chunk
// storage on the local filesystem, the primary/secondary write-and-append
// protocol of §4.2, and the heartbeat emitter that keeps the master's
// failure detector fed. It follows the teacher's (wl4g-collect-goGFS)
// connection-per-goroutine chunk server, generalized onto the spec's
// JSON/TCP wire format and boundary-padding semantics instead of the
// teacher's gob/net-rpc mutation log.
package chunkserver

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"

	"github.com/chiragdhamija/Distributed-Google-File-System/internal/config"
	"github.com/chiragdhamija/Distributed-Google-File-System/internal/gfs"
)

// ChunkServer owns one data port's worth of chunk payload files plus the
// dedicated control-channel listener at data_port+1 (§4.2, §9).
type ChunkServer struct {
	cfg        config.Config
	addr       gfs.ServerAddress
	masterAddr gfs.ServerAddress
	storageDir string

	listener        net.Listener
	controlListener net.Listener
	scheduler       gocron.Scheduler
	shutdownCh      chan struct{}

	requestCount int64 // atomic, reset after each heartbeat emission

	locksMu    sync.Mutex
	chunkLocks map[int64]*sync.Mutex
}

// New builds a ChunkServer for dataPort, creating its storage directory
// (one directory per CS port, §6) under cfg.StorageRoot if it doesn't
// already exist.
func New(cfg config.Config, masterAddr gfs.ServerAddress, host string, dataPort int) (*ChunkServer, error) {
	addr := gfs.NewServerAddress(host, dataPort)
	dir := fmt.Sprintf("%s/cs-%d", cfg.StorageRoot, dataPort)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("gfs: create storage dir: %w", err)
	}
	return &ChunkServer{
		cfg:        cfg,
		addr:       addr,
		masterAddr: masterAddr,
		storageDir: dir,
		shutdownCh: make(chan struct{}),
		chunkLocks: make(map[int64]*sync.Mutex),
	}, nil
}

func (cs *ChunkServer) chunkLock(chunkID int64) *sync.Mutex {
	cs.locksMu.Lock()
	defer cs.locksMu.Unlock()
	l, ok := cs.chunkLocks[chunkID]
	if !ok {
		l = &sync.Mutex{}
		cs.chunkLocks[chunkID] = l
	}
	return l
}

// Serve registers with the master, starts the heartbeat emitter and the
// control-channel acceptor, then blocks accepting data-path connections
// (§5: parallel task per inbound connection).
func (cs *ChunkServer) Serve() error {
	l, err := net.Listen("tcp", cs.addr.String())
	if err != nil {
		return fmt.Errorf("gfs: chunkserver listen: %w", err)
	}
	cs.listener = l

	cl, err := net.Listen("tcp", cs.addr.ControlAddress().String())
	if err != nil {
		l.Close()
		return fmt.Errorf("gfs: chunkserver control listen: %w", err)
	}
	cs.controlListener = cl

	if err := cs.registerWithMaster(); err != nil {
		log.Error("chunkserver: register with master failed: ", err)
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("gfs: create scheduler: %w", err)
	}
	cs.scheduler = sched
	if _, err := sched.NewJob(
		gocron.DurationJob(cs.cfg.HeartbeatInterval),
		gocron.NewTask(cs.sendHeartbeat),
	); err != nil {
		return fmt.Errorf("gfs: schedule heartbeat: %w", err)
	}
	sched.Start()

	go cs.acceptControl()

	log.WithField("addr", cs.addr).WithField("control_addr", cs.addr.ControlAddress()).Info("chunk server listening")

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-cs.shutdownCh:
				return nil
			default:
				log.Error("chunkserver accept error: ", err)
				return err
			}
		}
		go cs.handleDataConn(conn)
	}
}

// Shutdown stops both listeners and the heartbeat scheduler.
func (cs *ChunkServer) Shutdown() {
	close(cs.shutdownCh)
	if cs.listener != nil {
		cs.listener.Close()
	}
	if cs.controlListener != nil {
		cs.controlListener.Close()
	}
	if cs.scheduler != nil {
		cs.scheduler.Shutdown()
	}
}

func (cs *ChunkServer) registerWithMaster() error {
	conn, err := net.DialTimeout("tcp", cs.masterAddr.String(), 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()

	req := gfs.MasterRequest{Type: gfs.TypeRegisterChunkserver, Address: &cs.addr}
	if err := gfs.WriteMessage(conn, req); err != nil {
		return err
	}
	var resp gfs.MasterResponse
	return gfs.ReadMessage(conn, &resp)
}

// sendHeartbeat emits one UDP datagram to the master's heartbeat port
// (§4.3) and resets the per-interval request counter. The wire shape here
// is this package's own design: §9 notes the source never defined a CS
// heartbeat emitter, only the master's ingest side.
func (cs *ChunkServer) sendHeartbeat() {
	n := atomic.SwapInt64(&cs.requestCount, 0)
	hb := gfs.HeartbeatMessage{
		Type:          gfs.TypeHeartbeat,
		ChunkServerID: cs.addr.String(),
		Timestamp:     float64(time.Now().UnixNano()) / 1e9,
		NumRequests:   int(n),
	}

	udpAddr := &net.UDPAddr{IP: net.ParseIP(cs.masterAddr.Host), Port: cs.masterAddr.Port + 1}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		log.Debug("chunkserver: heartbeat dial failed: ", err)
		return
	}
	defer conn.Close()

	b, err := json.Marshal(hb)
	if err != nil {
		log.Debug("chunkserver: heartbeat encode failed: ", err)
		return
	}
	if _, err := conn.Write(b); err != nil {
		log.Debug("chunkserver: heartbeat send failed: ", err)
	}
}
