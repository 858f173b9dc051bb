package http

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"linkedpost/domain/dto"
	"linkedpost/domain/model"
	"linkedpost/infrastructure/logger"
	"linkedpost/usecase"
)

const (
	maxImageBytes = 8 << 20
	isoMillis     = "2006-01-02T15:04:05.000Z07:00"
)

type IPostHandler interface {
	Share(c *gin.Context)
	List(c *gin.Context)
	Delete(c *gin.Context)
}

type PostHandler struct {
	postUsecase usecase.IPostUsecase
}

func NewPostHandler(postUsecase usecase.IPostUsecase) IPostHandler {
	return &PostHandler{postUsecase: postUsecase}
}

// shareStatus maps Share failures to HTTP status codes.
func shareStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrTokenExpired), errors.Is(err, model.ErrLinkedInAuth):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrNotConnected),
		errors.Is(err, model.ErrContentRequired),
		errors.Is(err, model.ErrContentTooLong),
		errors.Is(err, model.ErrInvalidTone),
		errors.Is(err, model.ErrTimezoneRequired),
		errors.Is(err, model.ErrInvalidTimezone),
		errors.Is(err, model.ErrScheduleInvalid),
		errors.Is(err, model.ErrScheduleInPast),
		errors.Is(err, model.ErrScheduleTooSoon):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func bindShare(c *gin.Context) (usecase.SharePostInput, error) {
	var req dto.SharePostRequest
	in := usecase.SharePostInput{}
	if c.ContentType() == binding.MIMEJSON {
		if err := c.ShouldBindJSON(&req); err != nil {
			return in, err
		}
	} else if err := c.ShouldBind(&req); err != nil {
		return in, err
	}
	in = usecase.SharePostInput{
		Content:      req.Content,
		Topic:        req.Topic,
		Tone:         req.Tone,
		Keywords:     splitKeywords(req.Keywords),
		IsScheduled:  req.IsScheduled,
		ScheduledFor: req.ScheduledFor,
		Timezone:     req.Timezone,
	}

	file, err := c.FormFile("image")
	if err != nil {
		// No image part.
		return in, nil
	}
	f, err := file.Open()
	if err != nil {
		return in, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	if err != nil {
		return in, err
	}
	if len(data) > maxImageBytes {
		return in, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	in.Image = data
	in.ImageType = file.Header.Get("Content-Type")
	return in, nil
}

// splitKeywords accepts repeated fields as well as one comma-separated value.
func splitKeywords(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		for _, k := range strings.Split(r, ",") {
			if k = strings.TrimSpace(k); k != "" {
				out = append(out, k)
			}
		}
	}
	return out
}

// Share handles POST /api/linkedin/post.
func (h *PostHandler) Share(c *gin.Context) {
	userID := c.GetString("user_id")
	in, err := bindShare(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	out, err := h.postUsecase.Share(c.Request.Context(), userID, in)
	if err != nil {
		status := shareStatus(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			logger.GetLogger().WithField("user_id", userID).WithField("error", err).Error("LinkedIn post error")
			msg = "Failed to process LinkedIn post: " + msg
		}
		c.JSON(status, dto.ErrorResponse{Error: msg})
		return
	}

	switch {
	case out.Scheduled:
		c.JSON(http.StatusOK, dto.SharePostResponse{
			Message: "Post scheduled successfully",
			Post:    out.Post,
			ScheduledTime: &dto.ScheduledTime{
				UTC:   out.ScheduledUTC.Format(isoMillis),
				Local: out.ScheduledLocal.Format(isoMillis),
			},
		})
	case out.Duplicate:
		c.JSON(http.StatusOK, dto.SharePostResponse{
			Message:        "This content was already shared on LinkedIn",
			Post:           out.Post,
			LinkedInPostID: out.LinkedInPostID,
			Status:         model.PostStatusDuplicate,
		})
	default:
		c.JSON(http.StatusOK, dto.SharePostResponse{
			Message:        "Post shared successfully",
			Post:           out.Post,
			LinkedInPostID: out.LinkedInPostID,
		})
	}
}

// List handles GET /api/posts.
func (h *PostHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	filter := model.PostFilter{
		Page:          page,
		Limit:         limit,
		ScheduledOnly: c.Query("scheduled") == "true",
	}.Normalize()

	posts, total, err := h.postUsecase.List(c.Request.Context(), c.GetString("user_id"), filter)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while listing posts")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to fetch posts"})
		return
	}
	c.JSON(http.StatusOK, dto.PostListResponse{
		Posts: posts,
		Pagination: dto.Pagination{
			CurrentPage: filter.Page,
			TotalPages:  int(math.Ceil(float64(total) / float64(filter.Limit))),
			TotalPosts:  total,
			HasMore:     filter.Skip()+int64(len(posts)) < total,
		},
	})
}

// Delete handles DELETE /api/posts/:id (and ?id= for older clients).
func (h *PostHandler) Delete(c *gin.Context) {
	postID := c.Param("id")
	if postID == "" {
		postID = c.Query("id")
	}
	if postID == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Post ID is required"})
		return
	}

	err := h.postUsecase.Delete(c.Request.Context(), c.GetString("user_id"), postID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Post not found"})
	case errors.Is(err, model.ErrForbidden):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
	default:
		logger.GetLogger().WithField("post_id", postID).WithField("error", err).Error("Error deleting post")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
}
