package controllers

import (
	"embed"
	"errors"
	"html/template"
	"math"
	"net/http"
	"time"

	"optionchain-board/interfaces"
	"optionchain-board/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const writeTimeout = 10 * time.Second

// ChainController serves the option chain over HTTP
type ChainController struct {
	refresher *services.ChainRefresher
	columns   []interfaces.ColumnDescriptor
	logger    *logrus.Logger
	upgrader  websocket.Upgrader
}

// NewChainController creates a new chain controller
func NewChainController(refresher *services.ChainRefresher, columns []interfaces.ColumnDescriptor, logger *logrus.Logger) *ChainController {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	if len(columns) == 0 {
		columns = services.DefaultColumns()
	}

	return &ChainController{
		refresher: refresher,
		columns:   columns,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// RegisterRoutes wires the chain endpoints and the HTML page into the router
func (cc *ChainController) RegisterRoutes(router *gin.Engine) {
	tmpl := template.Must(template.New("chain").Funcs(template.FuncMap{
		"cell":     services.FormatCell,
		"progress": services.ProgressWidth,
		"isProgress": func(col interfaces.ColumnDescriptor) bool {
			return col.Kind == interfaces.ColumnProgress
		},
		"seconds": func(d time.Duration) int {
			return int(math.Max(1, d.Seconds()))
		},
	}).ParseFS(templateFS, "templates/chain.tmpl"))
	router.SetHTMLTemplate(tmpl)

	router.GET("/", cc.HandleChainPage)
	router.GET("/health", cc.HandleHealth)

	v1 := router.Group("/api/v1/chain")
	{
		v1.GET("", cc.HandleGetChain)
		v1.POST("/refresh", cc.HandleRefresh)
		v1.POST("/rows", cc.HandleBuildRows)
		v1.GET("/columns", cc.HandleGetColumns)
		v1.GET("/stream", cc.HandleStream)
	}
}

// HandleHealth reports liveness and the age of the current view
// GET /health
func (cc *ChainController) HandleHealth(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if view := cc.refresher.Latest(); view != nil {
		resp["last_refresh"] = view.Timestamp
	}
	c.JSON(http.StatusOK, resp)
}

// HandleGetChain returns the latest chain view
// GET /api/v1/chain
func (cc *ChainController) HandleGetChain(c *gin.Context) {
	view, err := cc.currentView(c)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Chain not available",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, view)
}

// HandleRefresh forces a new sample and rebuild
// POST /api/v1/chain/refresh
func (cc *ChainController) HandleRefresh(c *gin.Context) {
	view, err := cc.refresher.Refresh(c.Request.Context())
	if err != nil {
		cc.logger.WithError(err).Error("Manual chain refresh failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to refresh chain",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, view)
}

// SampleInput is one strike of one side in a build request
type SampleInput struct {
	Strike          float64 `json:"strike"`
	OpenPrice       float64 `json:"open_price"`
	LastTradedPrice float64 `json:"last_traded_price"`
	OpenInterest    int64   `json:"open_interest"`
}

// BuildRowsRequest is the body of POST /api/v1/chain/rows. Basis defaults to
// the largest open interest across both sides when omitted.
type BuildRowsRequest struct {
	Ladder []float64     `json:"ladder" binding:"required"`
	Puts   []SampleInput `json:"puts" binding:"required"`
	Calls  []SampleInput `json:"calls" binding:"required"`
	Basis  *int64        `json:"basis,omitempty"`
}

// HandleBuildRows derives chain rows from caller supplied samples
// POST /api/v1/chain/rows
func (cc *ChainController) HandleBuildRows(c *gin.Context) {
	var req BuildRowsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	puts := toSideMap(req.Puts)
	calls := toSideMap(req.Calls)

	basis := services.MaxOpenInterest(puts, calls)
	if req.Basis != nil {
		basis = *req.Basis
	}

	rows, err := services.BuildChainRows(req.Ladder, puts, calls, basis)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"error":   "Failed to build chain rows",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"basis": basis,
		"count": len(rows),
		"rows":  rows,
	})
}

// HandleGetColumns returns the table column layout
// GET /api/v1/chain/columns
func (cc *ChainController) HandleGetColumns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"count":   len(cc.columns),
		"columns": cc.columns,
	})
}

// HandleStream pushes every refreshed view over a websocket
// GET /api/v1/chain/stream
func (cc *ChainController) HandleStream(c *gin.Context) {
	conn, err := cc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		cc.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	views, unsubscribe := cc.refresher.Subscribe()
	defer unsubscribe()

	// the client never sends data; reading detects when it goes away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	cc.logger.WithField("remote", c.ClientIP()).Info("Chain stream client connected")
	defer cc.logger.WithField("remote", c.ClientIP()).Info("Chain stream client disconnected")

	if view := cc.refresher.Latest(); view != nil {
		if err := cc.writeView(conn, view); err != nil {
			return
		}
	}

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case view, ok := <-views:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "refresher stopped"),
					time.Now().Add(writeTimeout))
				return
			}
			if err := cc.writeView(conn, view); err != nil {
				cc.logger.WithError(err).Debug("Chain stream write failed")
				return
			}
		}
	}
}

// HandleChainPage renders the chain as an auto-refreshing HTML table
// GET /
func (cc *ChainController) HandleChainPage(c *gin.Context) {
	view, err := cc.currentView(c)
	if err != nil {
		c.String(http.StatusServiceUnavailable, "chain not available: %v", err)
		return
	}

	c.HTML(http.StatusOK, "chain.tmpl", gin.H{
		"View":     view,
		"Columns":  cc.columns,
		"Interval": cc.refresher.Interval(),
	})
}

func (cc *ChainController) currentView(c *gin.Context) (*interfaces.ChainView, error) {
	if view := cc.refresher.Latest(); view != nil {
		return view, nil
	}
	return cc.refresher.Refresh(c.Request.Context())
}

func (cc *ChainController) writeView(conn *websocket.Conn, view *interfaces.ChainView) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(view)
}

func toSideMap(samples []SampleInput) interfaces.SideMap {
	side := make(interfaces.SideMap, len(samples))
	for _, s := range samples {
		side[s.Strike] = interfaces.OptionSample{
			OpenPrice:       s.OpenPrice,
			LastTradedPrice: s.LastTradedPrice,
			OpenInterest:    s.OpenInterest,
		}
	}
	return side
}
