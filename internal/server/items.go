package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/flipflow/flipflow/internal/engine"
	"github.com/flipflow/flipflow/pkg/api"
)

var (
	ErrNoInput         = errors.New("description or images required")
	ErrUnknownPlatform = errors.New("unknown platform")
)

// createItem accepts a multipart intake form: a free-form description,
// an optional platform selection, and any number of item photos. The
// run starts immediately; the response carries the version-zero
// snapshot
func (s *Server) createItem(c *gin.Context) {
	description := strings.TrimSpace(c.PostForm("description"))

	platforms, err := s.selectedPlatforms(c.PostForm("platforms"))
	if err != nil {
		badRequest(c, err)
		return
	}

	keys, err := s.uploadImages(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusInternalServerError,
		})
		return
	}

	if description == "" && len(keys) == 0 {
		badRequest(c, ErrNoInput)
		return
	}

	st, err := s.engine.CreateItem(c.Request.Context(), &api.Fields{
		UserDescription: description,
		ImageKeys:       keys,
		Platforms:       platforms,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusInternalServerError,
		})
		return
	}
	s.supervisor.Kick(st.ItemID)

	c.JSON(http.StatusCreated, st)
}

func (s *Server) listItems(c *gin.Context) {
	runs, err := s.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusInternalServerError,
		})
		return
	}

	items := make([]*api.ItemDigest, len(runs))
	for i, st := range runs {
		items[i] = st.Digest()
	}
	c.JSON(http.StatusOK, api.ItemsListResponse{
		Items: items,
		Count: len(items),
	})
}

func (s *Server) getItem(c *gin.Context) {
	st, ok := s.loadItem(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, st)
}

// approveItem resolves the approval gate with the final price and an
// optional description edit, then re-enters the run
func (s *Server) approveItem(c *gin.Context) {
	var req api.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	id := api.ItemID(c.Param("itemID"))
	st, err := s.engine.SubmitApproval(
		c.Request.Context(), id, req.FinalPrice, req.Description,
	)
	if err != nil {
		decisionError(c, err)
		return
	}
	s.supervisor.Kick(id)

	c.JSON(http.StatusOK, st)
}

func (s *Server) cancelItem(c *gin.Context) {
	id := api.ItemID(c.Param("itemID"))
	st, err := s.engine.Cancel(c.Request.Context(), id)
	if err != nil {
		decisionError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// resumeItem clears a run's error flag and re-enters the failed step
func (s *Server) resumeItem(c *gin.Context) {
	id := api.ItemID(c.Param("itemID"))
	st, err := s.engine.ClearError(c.Request.Context(), id)
	if err != nil {
		decisionError(c, err)
		return
	}
	s.supervisor.Kick(id)

	c.JSON(http.StatusAccepted, st)
}

func (s *Server) getImage(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")

	data, contentType, err := s.images.Get(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusNotFound, api.ErrorResponse{
			Error:  "image not found",
			Status: http.StatusNotFound,
		})
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

func (s *Server) loadItem(c *gin.Context) (*api.RunState, bool) {
	id := api.ItemID(c.Param("itemID"))
	st, err := s.store.Load(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, api.ErrorResponse{
			Error:  fmt.Sprintf("item not found: %s", id),
			Status: http.StatusNotFound,
		})
		return nil, false
	}
	return st, true
}

func (s *Server) selectedPlatforms(raw string) ([]api.Platform, error) {
	if strings.TrimSpace(raw) == "" {
		return s.platforms, nil
	}

	var res []api.Platform
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p := api.Platform(part)
		if !s.knownPlatform(p) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, p)
		}
		res = append(res, p)
	}
	if len(res) == 0 {
		return s.platforms, nil
	}
	return res, nil
}

func (s *Server) knownPlatform(p api.Platform) bool {
	for _, known := range s.platforms {
		if known == p {
			return true
		}
	}
	return false
}

func (s *Server) uploadImages(c *gin.Context) ([]string, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil
	}

	var keys []string
	for _, header := range form.File["images"] {
		file, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload: %w", err)
		}

		key, err := s.images.Upload(
			c.Request.Context(), header.Filename, file,
		)
		_ = file.Close()
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, api.ErrorResponse{
		Error:  err.Error(),
		Status: http.StatusBadRequest,
	})
}

// decisionError maps decision failures onto HTTP statuses: an unknown
// item is 404, a mismatched or replayed decision is 409
func decisionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrRunNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusNotFound,
		})
	case errors.Is(err, engine.ErrGateMismatch):
		c.JSON(http.StatusConflict, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusConflict,
		})
	default:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusInternalServerError,
		})
	}
}
