package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/switchboard/internal/auth"
	"github.com/zulandar/switchboard/internal/db"
	"github.com/zulandar/switchboard/internal/mapping"
	syncpkg "github.com/zulandar/switchboard/internal/sync"
	"gorm.io/gorm"
)

// ackText is the ephemeral placeholder shown while the sync runs.
const ackText = ":hourglass_flowing_sand: Creating a task from this message..."

// handleMessageAction is the signed Slack webhook boundary. The raw body is
// captured before any parsing: signature verification must see the exact
// bytes Slack sent, and form decoding would re-encode them.
func handleMessageAction(verifier *auth.Verifier, orchestrator Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}

		timestamp := c.GetHeader("X-Slack-Request-Timestamp")
		signature := c.GetHeader("X-Slack-Signature")
		if err := verifier.Verify(timestamp, signature, raw); err != nil {
			var authErr *auth.Error
			reason := "invalid_request"
			if errors.As(err, &authErr) {
				reason = authErr.Reason
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": reason})
			return
		}

		form, err := url.ParseQuery(string(raw))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed form body"})
			return
		}
		var cb slackapi.InteractionCallback
		if err := json.Unmarshal([]byte(form.Get("payload")), &cb); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
			return
		}
		if cb.Type != slackapi.InteractionTypeMessageAction {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported interaction type"})
			return
		}

		req := requestFromCallback(&cb)

		// Acknowledge within Slack's timeout window; the sync itself runs
		// detached with its own error boundary, reporting through the
		// response_url.
		c.JSON(http.StatusOK, gin.H{
			"response_type": "ephemeral",
			"text":          ackText,
		})
		go func() {
			if err := orchestrator.Run(context.Background(), req); err != nil {
				log.Printf("server: sync for message %s: %v", req.MessageTS, err)
			}
		}()
	}
}

// requestFromCallback distills the interaction payload into a sync request.
// The mapping's author is the message author, not the user who invoked the
// action.
func requestFromCallback(cb *slackapi.InteractionCallback) syncpkg.Request {
	author := cb.Message.User
	if author == "" {
		author = cb.User.ID
	}
	return syncpkg.Request{
		TeamID:      cb.Team.ID,
		ChannelID:   cb.Channel.ID,
		UserID:      author,
		MessageTS:   cb.Message.Timestamp,
		ThreadTS:    cb.Message.ThreadTimestamp,
		Text:        cb.Message.Text,
		ResponseURL: cb.ResponseURL,
	}
}

func handleHealth(gormDB *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(gormDB); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":    "error",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
				"database":  "disconnected",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"database":  "connected",
		})
	}
}

func handleMappingList(gormDB *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := MappingList(gormDB, c.Query("status"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"mappings": rows})
	}
}

func handleMappingDetail(gormDB *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mapping id"})
			return
		}
		detail, err := GetMappingDetail(gormDB, uint(id))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "mapping not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

func handleFailedMappings(gormDB *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := FailedMappings(gormDB)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"mappings": rows})
	}
}

// handleRetry re-queues a failed mapping to pending. It does not re-run the
// orchestrator; that is a deliberate operator decision.
func handleRetry(mgr *mapping.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mapping id"})
			return
		}
		if err := mgr.Retry(uint(id)); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "sync_status": "pending"})
	}
}
