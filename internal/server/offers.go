package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flipflow/flipflow/internal/store"
	"github.com/flipflow/flipflow/pkg/api"
)

var ErrCounterAmount = errors.New("counter requires a positive amount")

func (s *Server) listOffers(c *gin.Context) {
	if _, ok := s.loadItem(c); !ok {
		return
	}

	id := api.ItemID(c.Param("itemID"))
	offers, err := s.store.ListOffers(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, api.OffersListResponse{
		Offers: offers,
		Count:  len(offers),
	})
}

// decideOffer applies a human decision to a pending offer. A decision
// against an already-resolved offer is a replay and conflicts
func (s *Server) decideOffer(c *gin.Context) {
	var req api.OfferDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Action == api.OfferActionCounter && req.CounterAmount <= 0 {
		badRequest(c, ErrCounterAmount)
		return
	}

	id := api.OfferID(c.Param("offerID"))
	offer, err := s.engine.SubmitOfferDecision(
		c.Request.Context(), id, req.Action, req.CounterAmount,
	)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{
				Error:  "offer not found",
				Status: http.StatusNotFound,
			})
			return
		}
		decisionError(c, err)
		return
	}
	s.supervisor.Kick(offer.ItemID)

	c.JSON(http.StatusOK, offer)
}
