package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"chordring/internal/chord"
)

// Server is the inbound half of the wire protocol (§6): it exposes the
// full RPC/client endpoint table over an echo router and dispatches
// every handler onto a chord.Node.
type Server struct {
	echo     *echo.Echo
	node     *chord.Node
	log      *slog.Logger
	inactive atomic.Bool
}

// NewServer wires every endpoint in §6 onto node.
func NewServer(node *chord.Node, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			log.Debug("request",
				"method", c.Request().Method,
				"uri", c.Request().RequestURI,
				"status", c.Response().Status,
				"latency", time.Since(start))
			return err
		}
	})

	s := &Server{echo: e, node: node, log: log}

	e.Use(s.crashMiddleware)

	e.POST("/sim-crash", s.handleSimCrash)
	e.POST("/sim-recover", s.handleSimRecover)
	e.GET("/health", s.handleHealth)
	e.GET("/node_info", s.handleNodeInfo)
	e.GET("/successor", s.handleGetSuccessor)
	e.GET("/get_predecessor", s.handleGetPredecessor)
	e.POST("/notify", s.handleNotify)
	e.GET("/closest_preceding_finger", s.handleClosestPrecedingFinger)
	e.GET("/find_successor", s.handleFindSuccessor)
	e.GET("/find_predecessor", s.handleFindPredecessor)
	e.POST("/update_finger_table", s.handleUpdateFingerTable)
	e.POST("/transfer_keys", s.handleTransferKeys)
	e.POST("/store/:key", s.handleStore)
	e.GET("/lookup/:key", s.handleLookup)
	e.POST("/join", s.handleJoin)
	e.POST("/depart", s.handleDepart)
	e.POST("/update_successor", s.handleUpdateSuccessor)
	e.POST("/update_predecessor", s.handleUpdatePredecessor)
	e.POST("/receive_keys", s.handleReceiveKeys)
	e.GET("/finger_table", s.handleFingerTable)
	e.GET("/data_store", s.handleDataStore)
	e.GET("/network_state", s.handleNetworkState)

	return s
}

func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) Start(addr string) error {
	s.log.Info("starting http server", "addr", addr)
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// errorResponse is the shared failure envelope: {status:"error",
// message, node_id} per §6.
func (s *Server) errorResponse(c echo.Context, code int, message string) error {
	return c.JSON(code, map[string]any{
		"status":  "error",
		"message": message,
		"node_id": s.node.ID(),
	})
}

func parseKeyID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.QueryParam("key_id"), 10, 64)
}

// crashMiddleware lets /sim-crash flag the node inactive without
// tearing down the process: every other route is refused with 503
// until /sim-recover clears the flag. Grounded on the teacher's
// HTTPTransport.crashMiddleware.
func (s *Server) crashMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Path() == "/sim-recover" {
			return next(c)
		}
		if s.inactive.Load() {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":  "error",
				"message": "node simulated as crashed",
				"node_id": s.node.ID(),
			})
		}
		return next(c)
	}
}

func (s *Server) handleSimCrash(c echo.Context) error {
	s.inactive.Store(true)
	s.log.Info("sim-crash: node flagged inactive", "node_id", s.node.ID())
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleSimRecover(c echo.Context) error {
	s.inactive.Store(false)
	s.log.Info("sim-recover: node flagged active", "node_id", s.node.ID())
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleHealth(c echo.Context) error {
	succ := s.node.Successor()
	pred := s.node.Predecessor()
	var predID *uint64
	if pred != nil {
		id := pred.ID
		predID = &id
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ok",
		"node_id":     s.node.ID(),
		"successor":   succ.ID,
		"predecessor": predID,
	})
}

func (s *Server) handleNodeInfo(c echo.Context) error {
	succ := s.node.Successor()
	pred := s.node.Predecessor()
	fingers := s.node.FingerTable()
	summary := make([]map[string]any, len(fingers))
	for i, f := range fingers {
		summary[i] = map[string]any{"start": f.Start, "successor": f.Successor}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"self":        s.node.Self(),
		"successor":   succ,
		"predecessor": pred,
		"fingers":     summary,
		"data_count":  s.node.DataCount(),
		"m":           s.node.Bits(),
	})
}

func (s *Server) handleGetSuccessor(c echo.Context) error {
	return c.JSON(http.StatusOK, s.node.Successor())
}

func (s *Server) handleGetPredecessor(c echo.Context) error {
	pred := s.node.Predecessor()
	if pred == nil {
		return c.JSON(http.StatusOK, nil)
	}
	return c.JSON(http.StatusOK, pred)
}

func (s *Server) handleNotify(c echo.Context) error {
	var candidate chord.NodeRef
	if err := c.Bind(&candidate); err != nil {
		return s.errorResponse(c, http.StatusBadRequest, "malformed NodeRef body")
	}
	accepted := s.node.Notify(candidate)
	return c.JSON(http.StatusOK, map[string]bool{"success": accepted})
}

func (s *Server) handleClosestPrecedingFinger(c echo.Context) error {
	keyID, err := parseKeyID(c)
	if err != nil {
		return s.errorResponse(c, http.StatusBadRequest, "missing or non-integer key_id")
	}
	return c.JSON(http.StatusOK, s.node.ClosestPrecedingFinger(keyID))
}

func (s *Server) handleFindSuccessor(c echo.Context) error {
	keyID, err := parseKeyID(c)
	if err != nil {
		return s.errorResponse(c, http.StatusBadRequest, "missing or non-integer key_id")
	}
	result, err := s.node.FindSuccessor(c.Request().Context(), keyID)
	if err != nil {
		return s.errorResponse(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleFindPredecessor(c echo.Context) error {
	keyID, err := parseKeyID(c)
	if err != nil {
		return s.errorResponse(c, http.StatusBadRequest, "missing or non-integer key_id")
	}
	result, err := s.node.FindPredecessor(c.Request().Context(), keyID)
	if err != nil {
		return s.errorResponse(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleUpdateFingerTable(c echo.Context) error {
	var body struct {
		I int           `json:"i"`
		S chord.NodeRef `json:"s"`
	}
	if err := c.Bind(&body); err != nil {
		return s.errorResponse(c, http.StatusBadRequest, "malformed update_finger_table body")
	}
	updated := s.node.UpdateFingerTable(c.Request().Context(), body.S, body.I)
	return c.JSON(http.StatusOK, map[string]bool{"success": updated})
}

func (s *Server) handleTransferKeys(c echo.Context) error {
	var body struct {
		NodeID     uint64  `json:"node_id"`
		LowerBound *uint64 `json:"lower_bound"`
	}
	if err := c.Bind(&body); err != nil {
		return s.errorResponse(c, http.StatusBadRequest, "malformed transfer_keys body")
	}
	keys := s.node.TransferKeysToPredecessor(body.NodeID, body.LowerBound)
	return c.JSON(http.StatusOK, map[string]any{"keys": keys})
}

func (s *Server) handleStore(c echo.Context) error {
	key := c.Param("key")
	body, err := readBody(c)
	if err != nil {
		return s.errorResponse(c, http.StatusInternalServerError, "failed to read body")
	}
	forwarded := c.QueryParam("forwarded") == "1"

	result, err := s.node.Store(c.Request().Context(), key, string(body), forwarded)
	if err != nil {
		return s.errorResponse(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"node_id": result.OwnerID,
		"path":    result.Path,
	})
}

func (s *Server) handleLookup(c echo.Context) error {
	key := c.Param("key")
	forwarded := c.QueryParam("forwarded") == "1"

	result, err := s.node.Lookup(c.Request().Context(), key, forwarded)
	if err != nil {
		return s.errorResponse(c, http.StatusInternalServerError, err.Error())
	}
	if !result.Found {
		return c.JSON(http.StatusNotFound, map[string]any{
			"status":  "error",
			"message": "key not found",
			"node_id": result.OwnerID,
			"path":    result.Path,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"value":   result.Value,
		"node_id": result.OwnerID,
		"path":    result.Path,
	})
}

func (s *Server) handleJoin(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return s.errorResponse(c, http.StatusInternalServerError, "failed to read body")
	}
	bootstrap := string(body)
	if err := s.node.Join(c.Request().Context(), bootstrap); err != nil {
		return s.errorResponse(c, http.StatusInternalServerError, err.Error())
	}
	succ := s.node.Successor()
	pred := s.node.Predecessor()
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "success",
		"successor":   succ,
		"predecessor": pred,
	})
}

func (s *Server) handleDepart(c echo.Context) error {
	if err := s.node.Depart(c.Request().Context()); err != nil {
		return s.errorResponse(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleUpdateSuccessor(c echo.Context) error {
	var body struct {
		Successor chord.NodeRef `json:"successor"`
	}
	if err := c.Bind(&body); err != nil {
		return s.errorResponse(c, http.StatusBadRequest, "malformed update_successor body")
	}
	s.node.SetSuccessor(body.Successor)
	return c.JSON(http.StatusOK, map[string]string{"status": "ack"})
}

func (s *Server) handleUpdatePredecessor(c echo.Context) error {
	var body struct {
		Predecessor *chord.NodeRef `json:"predecessor"`
	}
	if err := c.Bind(&body); err != nil {
		return s.errorResponse(c, http.StatusBadRequest, "malformed update_predecessor body")
	}
	s.node.SetPredecessor(body.Predecessor)
	return c.JSON(http.StatusOK, map[string]string{"status": "ack"})
}

func (s *Server) handleReceiveKeys(c echo.Context) error {
	var body struct {
		Data map[string]string `json:"data"`
	}
	if err := c.Bind(&body); err != nil {
		return s.errorResponse(c, http.StatusBadRequest, "malformed receive_keys body")
	}
	s.node.ReceiveKeys(body.Data)
	return c.JSON(http.StatusOK, map[string]string{"status": "ack"})
}

func (s *Server) handleFingerTable(c echo.Context) error {
	return c.JSON(http.StatusOK, s.node.FingerTable())
}

func (s *Server) handleDataStore(c echo.Context) error {
	return c.JSON(http.StatusOK, s.node.DataSnapshot())
}

// networkStateMaxNodes bounds the /network_state successor-chain walk
// so a broken ring (a cycle that never comes back to self) can't loop
// forever, matching original_source's max_nodes=100 guard.
const networkStateMaxNodes = 100

func (s *Server) handleNetworkState(c echo.Context) error {
	nodes := s.node.NetworkState(c.Request().Context(), networkStateMaxNodes)
	return c.JSON(http.StatusOK, map[string]any{"nodes": nodes})
}

func readBody(c echo.Context) ([]byte, error) {
	defer c.Request().Body.Close()
	return io.ReadAll(c.Request().Body)
}
