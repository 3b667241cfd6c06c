// Package master implements the GFS-inspired metadata coordinator: the
// namespace/chunk catalog and placement logic (§4.1), the failure and
// hot-spot response loop (§4.3), and the control-plane TCP/heartbeat UDP
// servers (§6). It follows the teacher's (wl4g-collect-goGFS) shape —
// small manager types behind named locks, a goroutine per accepted
// connection, a periodic background task — generalized onto the JSON
// wire format §6 actually specifies instead of the teacher's net/rpc+gob.
package master

import (
	"fmt"
	"net"
	"time"

	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"

	"github.com/chiragdhamija/Distributed-Google-File-System/internal/config"
	"github.com/chiragdhamija/Distributed-Google-File-System/internal/gfs"
)

// Master is the single-process metadata authority of §4.1.
type Master struct {
	cfg config.Config

	catalog         *Catalog
	heartbeats      *HeartbeatTable
	access          *AccessTracker
	controlChannels *ControlChannels

	listener   net.Listener
	udpConn    *net.UDPConn
	scheduler  gocron.Scheduler
	shutdownCh chan struct{}
}

// New constructs a Master with fresh (or reloaded, per I6) metadata. Call
// Serve to start accepting connections.
func New(cfg config.Config) (*Master, error) {
	persist := NewPersister(cfg.StorageRoot)
	catalog, err := NewCatalog(persist)
	if err != nil {
		return nil, fmt.Errorf("gfs: load catalog: %w", err)
	}

	return &Master{
		cfg:             cfg,
		catalog:         catalog,
		heartbeats:      NewHeartbeatTable(),
		access:          NewAccessTracker(),
		controlChannels: NewControlChannels(),
		shutdownCh:      make(chan struct{}),
	}, nil
}

// Serve binds the main TCP port and the UDP heartbeat port, launches the
// background failure-detector and heartbeat-processor tasks, and blocks
// accepting connections until Shutdown is called.
func (m *Master) Serve(bindHost string) error {
	addr := fmt.Sprintf("%s:%d", bindHost, m.cfg.MasterPort)
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("gfs: master listen: %w", err)
	}
	m.listener = l

	udpAddr := &net.UDPAddr{IP: net.ParseIP(bindHost), Port: m.cfg.MasterHeartbeatPort}
	if udpAddr.IP == nil {
		udpAddr.IP = net.IPv4zero
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		l.Close()
		return fmt.Errorf("gfs: master heartbeat listen: %w", err)
	}
	m.udpConn = udpConn

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("gfs: create scheduler: %w", err)
	}
	m.scheduler = sched
	if _, err := sched.NewJob(
		gocron.DurationJob(m.cfg.HeartbeatInterval),
		gocron.NewTask(m.detectDeadServers),
	); err != nil {
		return fmt.Errorf("gfs: schedule failure detector: %w", err)
	}
	sched.Start()

	heartbeats := make(chan gfs.HeartbeatMessage, 256)
	go m.ingestHeartbeats(heartbeats)
	go m.processHeartbeats(heartbeats)

	log.WithField("addr", addr).WithField("heartbeat_port", m.cfg.MasterHeartbeatPort).Info("master listening")

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-m.shutdownCh:
				return nil
			default:
				log.Error("master accept error: ", err)
				return err
			}
		}
		go m.handleConn(conn)
	}
}

// Shutdown stops the listener, the UDP socket and the background scheduler.
func (m *Master) Shutdown() {
	close(m.shutdownCh)
	if m.listener != nil {
		m.listener.Close()
	}
	if m.udpConn != nil {
		m.udpConn.Close()
	}
	if m.scheduler != nil {
		m.scheduler.Shutdown()
	}
	m.controlChannels.CloseAll()
}

// detectDeadServers is the periodic failure-detector task of §4.3: scan
// the heartbeat table, mark anything past threshold as failed, and fire
// failure-based re-replication for every chunk it held.
func (m *Master) detectDeadServers() {
	threshold := m.cfg.HeartbeatFailureThreshold()
	newlyDead := m.heartbeats.DetectDead(time.Now(), threshold)
	for _, id := range newlyDead {
		addr, err := gfs.ParseHostPort(id)
		if err != nil {
			log.Error("detect dead: bad address ", id, ": ", err)
			continue
		}
		log.WithField("server", addr).Warn("chunk server marked failed")
		m.reReplicateForServer(addr, true)
	}
}

// handleConn dispatches a single accepted connection: read one JSON
// request, act on it, write one JSON response, close (§6).
func (m *Master) handleConn(conn net.Conn) {
	defer conn.Close()

	var req gfs.MasterRequest
	if err := gfs.ReadMessage(conn, &req); err != nil {
		log.Debug("master: malformed request: ", err)
		return
	}

	resp := m.dispatch(req)
	if err := gfs.WriteMessage(conn, resp); err != nil {
		log.Debug("master: write response failed: ", err)
	}
}
