package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chatcoach/internal/app"
	"chatcoach/internal/transport/http/response"
)

type CatalogHandler struct {
	catalogService *app.CatalogService
}

func NewCatalogHandler(catalogService *app.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

func (h *CatalogHandler) ListCharacters(c *gin.Context) {
	characters, err := h.catalogService.ListCharacters()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list characters failed")
		return
	}
	response.OK(c, gin.H{"characters": characters})
}

func (h *CatalogHandler) GetCharacter(c *gin.Context) {
	id, ok := parseIDParam(c, "character_id")
	if !ok {
		return
	}

	character, err := h.catalogService.GetCharacter(id)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrCharacterNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get character failed")
		}
		return
	}
	response.OK(c, character)
}

func (h *CatalogHandler) ListEpisodes(c *gin.Context) {
	episodes, err := h.catalogService.ListEpisodes()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list episodes failed")
		return
	}
	response.OK(c, gin.H{"episodes": episodes})
}

func (h *CatalogHandler) GetEpisode(c *gin.Context) {
	id, ok := parseIDParam(c, "episode_id")
	if !ok {
		return
	}

	episode, err := h.catalogService.GetEpisode(id)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrEpisodeNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get episode failed")
		}
		return
	}
	response.OK(c, episode)
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id64, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(id64), true
}
