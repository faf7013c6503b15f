package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SamiTelo/API-Football/internal/media/sniffer"
	"github.com/SamiTelo/API-Football/internal/models"
	"github.com/SamiTelo/API-Football/internal/service"
)

type imageResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	OwnerID   int64     `json:"ownerId"`
	Format    string    `json:"format"`
	SizeBytes int64     `json:"sizeBytes"`
	CreatedAt time.Time `json:"createdAt"`
}

func parseOwner(c *gin.Context) (models.ImageOwner, int64, bool) {
	kind := models.ImageOwner(c.Param("kind"))
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if !kind.Valid() || err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_owner",
			"message": "Ressource invalide",
		})
		return "", 0, false
	}
	return kind, id, true
}

func (h HandlerSet) UploadImage(c *gin.Context) {
	kind, ownerID, ok := parseOwner(c)
	if !ok {
		return
	}

	maxSize := h.cfg.Storage.MaxUploadSize
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+1<<20)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "file_required",
			"message": "Fichier manquant",
		})
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":   "file_too_large",
			"message": "Fichier trop volumineux",
		})
		return
	}

	image, err := h.uploadService.Upload(c.Request.Context(), service.UploadInput{
		Kind:         kind,
		OwnerID:      ownerID,
		Body:         file,
		DeclaredMIME: sniffer.MimeTypeFromHTTP(http.Header(header.Header)),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"image": imageResponse{
			ID:        image.ID,
			Kind:      string(image.OwnerKind),
			OwnerID:   image.OwnerID,
			Format:    image.Format,
			SizeBytes: image.SizeBytes,
			CreatedAt: image.CreatedAt,
		},
	})
}

func (h HandlerSet) GetImage(c *gin.Context) {
	kind, ownerID, ok := parseOwner(c)
	if !ok {
		return
	}

	url, err := h.uploadService.SignedURL(c.Request.Context(), kind, ownerID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}
