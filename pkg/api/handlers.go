package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sinas-io/burrow/pkg/functions"
	"github.com/sinas-io/burrow/pkg/pool"
	"github.com/sinas-io/burrow/pkg/types"
)

// ExecuteRequest is the body of POST /v1/execute
type ExecuteRequest struct {
	FunctionNamespace string         `json:"function_namespace" binding:"required"`
	FunctionName      string         `json:"function_name" binding:"required"`
	InputData         map[string]any `json:"input_data"`
	ExecutionID       string         `json:"execution_id"`
	EnabledNamespaces []string       `json:"enabled_namespaces"`
	TriggerType       string         `json:"trigger_type"`
	UserID            string         `json:"user_id"`
	UserEmail         string         `json:"user_email"`
	AccessToken       string         `json:"access_token"`
	ChatID            string         `json:"chat_id"`
}

// ScaleRequest is the body of POST /v1/workers/scale
type ScaleRequest struct {
	Count *int `json:"count" binding:"required"`
}

// LoadRequest is the body of POST /v1/workers/load
type LoadRequest struct {
	Namespaces []string `json:"namespaces"`
}

func poolParams(req ExecuteRequest) pool.ExecuteParams {
	return pool.ExecuteParams{
		FunctionNamespace: req.FunctionNamespace,
		FunctionName:      req.FunctionName,
		InputData:         req.InputData,
		ExecutionID:       req.ExecutionID,
		EnabledNamespaces: req.EnabledNamespaces,
		Context: types.ExecutionContext{
			UserID:      req.UserID,
			UserEmail:   req.UserEmail,
			AccessToken: req.AccessToken,
			ExecutionID: req.ExecutionID,
			TriggerType: req.TriggerType,
			ChatID:      req.ChatID,
		},
	}
}

func (s *Server) execute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := s.pool.Execute(c.Request.Context(), poolParams(req))

	// Execution failures are data; the transport-level status is 200
	// whenever the pool produced a result.
	c.JSON(http.StatusOK, result)
}

func (s *Server) listWorkers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"workers": s.pool.ListWorkers(c.Request.Context())})
}

func (s *Server) scaleWorkers(c *gin.Context) {
	var req ScaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := s.pool.Scale(c.Request.Context(), *req.Count)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) loadFunctions(c *gin.Context) {
	var req LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := s.pool.LoadFunctions(c.Request.Context(), req.Namespaces)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) putFunction(c *gin.Context) {
	var fn types.FunctionSource
	if err := c.ShouldBindJSON(&fn); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if fn.Namespace == "" || fn.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "namespace and name are required"})
		return
	}

	if err := s.directory.Put(&fn); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, fn)
}

func (s *Server) listFunctions(c *gin.Context) {
	fns, err := s.directory.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"functions": fns})
}

func (s *Server) listNamespace(c *gin.Context) {
	fns, err := s.directory.ListNamespace(c.Param("namespace"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"functions": fns})
}

func (s *Server) getFunction(c *gin.Context) {
	fn, err := s.directory.Get(c.Param("namespace"), c.Param("name"))
	if err != nil {
		if errors.Is(err, functions.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, fn)
}

func (s *Server) deleteFunction(c *gin.Context) {
	err := s.directory.Delete(c.Param("namespace"), c.Param("name"))
	if err != nil {
		if errors.Is(err, functions.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
