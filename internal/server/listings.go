package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flipflow/flipflow/pkg/api"
)

func (s *Server) listListings(c *gin.Context) {
	st, ok := s.loadItem(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, api.ListingsListResponse{
		Listings: st.Fields.Listings,
		Count:    len(st.Fields.Listings),
	})
}

func (s *Server) listComparables(c *gin.Context) {
	st, ok := s.loadItem(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, api.ComparablesListResponse{
		Comparables: st.Fields.Comparables,
		Count:       len(st.Fields.Comparables),
	})
}

func (s *Server) listMessages(c *gin.Context) {
	st, ok := s.loadItem(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, api.MessagesListResponse{
		Messages: st.Fields.Messages,
		Count:    len(st.Fields.Messages),
	})
}
