package ws

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/ipc"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/pool"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/procwatch"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/session"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/shell"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 10 * time.Second

// Options configures a Handler
type Options struct {
	Pool     *pool.Pool
	Resolver *shell.Resolver
	Watcher  *procwatch.Watcher
	Metrics  *monitoring.Metrics
	Logger   *zap.Logger

	FlushInterval time.Duration
	ExitDebounce  time.Duration
	SettleDelay   time.Duration
}

// Handler manages terminal WebSocket connections
type Handler struct {
	opts     Options
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler
func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Watcher == nil {
		opts.Watcher = procwatch.New(procwatch.Options{Logger: opts.Logger})
	}

	return &Handler{
		opts:   opts,
		logger: opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 32 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // origins are enforced by the CORS middleware
			},
		},
	}
}

// HandleConnection upgrades the request and runs one terminal session
func (h *Handler) HandleConnection(c *gin.Context) {
	ownerPid, err := strconv.Atoi(c.Query("pid"))
	if err != nil || ownerPid <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pid query parameter is required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := id.NewConnectionID()
	logger := h.logger.With(zap.String("conn_id", connID.String()), zap.Int("owner_pid", ownerPid))
	logger.Info("Terminal connection opened")

	h.opts.Metrics.IncWSConnections()
	defer h.opts.Metrics.DecWSConnections()

	out := &connChannel{conn: conn, metrics: h.opts.Metrics}

	h.opts.Watcher.Watch(ownerPid)
	orch := session.New(session.Options{
		OwnerPid:      ownerPid,
		Pool:          h.opts.Pool,
		Resolver:      h.opts.Resolver,
		Channel:       out,
		Removals:      h.opts.Watcher,
		Logger:        logger,
		Metrics:       h.opts.Metrics,
		FlushInterval: h.opts.FlushInterval,
		ExitDebounce:  h.opts.ExitDebounce,
		SettleDelay:   h.opts.SettleDelay,
	})
	defer func() {
		h.opts.Watcher.Remove(ownerPid)
		orch.Teardown()
		logger.Info("Terminal connection closed", zap.Stringer("state", orch.State()))
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		env, err := ipc.DecodeEnvelope(data)
		if err != nil {
			logger.Debug("Dropping malformed message", zap.Error(err))
			continue
		}
		h.opts.Metrics.RecordWSMessage("in", string(env.Type))
		h.dispatch(orch, env, logger)
	}
}

func (h *Handler) dispatch(orch *session.Orchestrator, env ipc.Envelope, logger *zap.Logger) {
	switch env.Type {
	case ipc.TerminalReady:
		cfg, err := ipc.DecodeTermConfig(env.Payload)
		if err != nil {
			logger.Warn("Invalid terminal-ready payload", zap.Error(err))
			return
		}
		// spawn failures are reported to the UI by the orchestrator
		_ = orch.HandleReady(cfg)

	case ipc.TerminalInput:
		in, err := ipc.DecodeInput(env.Payload)
		if err != nil {
			logger.Debug("Invalid terminal-input payload", zap.Error(err))
			return
		}
		if err := orch.HandleInput(in); err != nil {
			logger.Debug("Input dropped", zap.Error(err))
		}

	case ipc.TerminalResize:
		r, err := ipc.DecodeResize(env.Payload)
		if err != nil {
			logger.Debug("Invalid terminal-resize payload", zap.Error(err))
			return
		}
		if err := orch.HandleResize(r); err != nil {
			logger.Debug("Resize dropped", zap.Error(err))
		}

	case ipc.TerminalExit:
		cfg, err := ipc.DecodeTermConfig(env.Payload)
		if err != nil {
			logger.Warn("Invalid terminal-exit payload", zap.Error(err))
			return
		}
		orch.HandleExit(cfg)

	case ipc.TerminalKill:
		pid, err := ipc.DecodeKill(env.Payload)
		if err != nil {
			logger.Debug("Invalid terminal-kill payload", zap.Error(err))
			return
		}
		orch.HandleKill(pid)

	default:
		logger.Debug("Unknown message type", zap.String("type", string(env.Type)))
	}
}

// connChannel writes orchestrator messages to the socket. gorilla/websocket
// allows one concurrent writer, so writes are serialized.
type connChannel struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	metrics *monitoring.Metrics
}

func (c *connChannel) Send(msg ipc.Message) error {
	frameType := websocket.TextMessage
	var data []byte
	if out, ok := msg.Payload.(ipc.Output); ok && out.Binary {
		frameType = websocket.BinaryMessage
		data = out.Data
	} else {
		encoded, err := ipc.Encode(msg)
		if err != nil {
			return err
		}
		data = encoded
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(frameType, data); err != nil {
		return err
	}
	c.metrics.RecordWSMessage("out", string(msg.Type))
	return nil
}
