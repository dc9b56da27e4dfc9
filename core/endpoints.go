package core

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	sm "cpm/models"
)

const (
	DefaultAddr = ":8080"
)

var DefaultCorsOrigins = []string{"http://localhost:3000"}

// GetHttpServer has no write timeout, a simulation may run for minutes
func GetHttpServer(sc ServiceContext, addr string, corsOrigins []string) *http.Server {
	if addr == "" {
		addr = DefaultAddr
	}
	server := &http.Server{
		Addr:           addr,
		Handler:        GetRouter(sc, corsOrigins),
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	return server
}

func GetRouter(sc ServiceContext, corsOrigins []string) *gin.Engine {
	if len(corsOrigins) == 0 {
		corsOrigins = DefaultCorsOrigins
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	engine.GET("/api/ping", ping)
	engine.POST("/api/simulations", func(c *gin.Context) { postSimulation(c, sc) })
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return engine
}

func ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

func postSimulation(c *gin.Context, sc ServiceContext) {
	var req sm.SimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, sm.GetServiceResponseError(sm.ErrorKindConfiguration, err.Error()))
		return
	}

	// the request context cancels the simulation when the client goes away
	sc.Context = c.Request.Context()
	res, err := sc.RunSimulation(req)
	if err != nil {
		kind := errorKind(err)
		status := http.StatusInternalServerError
		if kind == sm.ErrorKindConfiguration {
			status = http.StatusBadRequest
		}
		log.WithError(err).WithField("kind", kind).Warn("Simulation request failed")
		c.JSON(status, sm.GetServiceResponseError(kind, err.Error()))
		return
	}

	c.JSON(http.StatusOK, sm.GetServiceResponseOk(res))
}
