package meta

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"tidewar/server/auth"
	"tidewar/shared/logging"
	"tidewar/shared/protocol"
)

type rpcFunc func(c *gin.Context, id auth.Identity) (any, error)

type Handler struct {
	svc  *Service
	rpcs map[string]rpcFunc
}

func NewHandler(svc *Service) *Handler {
	h := &Handler{svc: svc}
	h.rpcs = map[string]rpcFunc{
		protocol.RPCLoadUserCards:  h.loadUserCards,
		protocol.RPCSwapDeckCard:   h.swapDeckCard,
		protocol.RPCUpgradeCard:    h.upgradeCard,
		protocol.RPCHandleMatchEnd: h.handleMatchEnd,
	}
	return h
}

// Router mounts the RPC surface under /rpc behind authMW.
func (h *Handler) Router(authMW gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	g := r.Group("/rpc", authMW)
	g.GET("/profile", h.profile)
	g.POST("/:id", h.call)
	return r
}

func (h *Handler) call(c *gin.Context) {
	rpcID := c.Param("id")
	fn, ok := h.rpcs[rpcID]
	if !ok {
		c.JSON(http.StatusNotFound, protocol.RPCErrorResp{Error: protocol.RPCError{Code: "UNKNOWN_RPC", Message: rpcID}})
		return
	}
	id := c.MustGet(auth.GinIdentityKey).(auth.Identity)
	out, err := fn(c, id)
	if err != nil {
		re := toRPCError(err)
		if re.Status >= http.StatusInternalServerError {
			logging.Error("rpc failed", err, logging.Fields{"rpc": rpcID, "user": id.UserID})
		}
		c.JSON(re.Status, re.Body())
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) profile(c *gin.Context) {
	id := c.MustGet(auth.GinIdentityKey).(auth.Identity)
	p, err := h.svc.Profile(c.Request.Context(), id.UserID)
	if err != nil {
		re := toRPCError(err)
		c.JSON(re.Status, re.Body())
		return
	}
	c.JSON(http.StatusOK, p)
}

// bind decodes the JSON body; an empty body leaves v at its zero value.
func bind(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return &RPCError{Status: http.StatusBadRequest, Code: "INVALID_REQUEST", Message: err.Error()}
	}
	return nil
}

func (h *Handler) loadUserCards(c *gin.Context, id auth.Identity) (any, error) {
	return h.svc.LoadUserCards(c.Request.Context(), id.UserID)
}

func (h *Handler) swapDeckCard(c *gin.Context, id auth.Identity) (any, error) {
	var req protocol.SwapDeckCardReq
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	return h.svc.SwapDeckCard(c.Request.Context(), id.UserID, req)
}

func (h *Handler) upgradeCard(c *gin.Context, id auth.Identity) (any, error) {
	var req protocol.UpgradeCardReq
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	return h.svc.UpgradeCard(c.Request.Context(), id.UserID, req)
}

func (h *Handler) handleMatchEnd(c *gin.Context, id auth.Identity) (any, error) {
	var req protocol.MatchEndReq
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	return h.svc.HandleMatchEnd(c.Request.Context(), id.UserID, req)
}
