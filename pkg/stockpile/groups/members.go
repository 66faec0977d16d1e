package groups

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mikepea/stockpile/pkg/stockpile/apierr"
	"github.com/mikepea/stockpile/pkg/stockpile/auth"
	"github.com/mikepea/stockpile/pkg/stockpile/models"
)

// AddMemberRequest represents a request to add a member
type AddMemberRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// ListMembers returns the users listed in a group
func (h *Handler) ListMembers(c *gin.Context) {
	g, ok := h.visible(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	members := make([]auth.UserResponse, 0, len(g.MemberIDs))
	for _, id := range g.MemberIDs {
		if u, ok := h.store.GetUser(ctx, id); ok {
			members = append(members, auth.NewUserResponse(u))
		}
	}
	c.JSON(http.StatusOK, members)
}

// AddMember adds a user to a group (admin only)
func (h *Handler) AddMember(c *gin.Context) {
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}

	ctx := c.Request.Context()
	g, ok := h.store.GetGroup(ctx, c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}
	if _, ok := h.store.GetUser(ctx, req.UserID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if g.HasMember(req.UserID) {
		c.JSON(http.StatusConflict, gin.H{"error": "User is already a member"})
		return
	}

	updated, ok := h.store.UpdateGroup(ctx, g.ID, models.GroupPatch{MemberIDs: append(g.MemberIDs, req.UserID)})
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}
	if !h.resync(c) {
		return
	}
	c.JSON(http.StatusCreated, newGroupResponse(updated))
}

// RemoveMember removes a user from a group (admin only)
func (h *Handler) RemoveMember(c *gin.Context) {
	ctx := c.Request.Context()
	g, ok := h.store.GetGroup(ctx, c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}
	userID := c.Param("userId")
	if !g.HasMember(userID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return
	}

	remaining := make([]string, 0, len(g.MemberIDs))
	for _, id := range g.MemberIDs {
		if id != userID {
			remaining = append(remaining, id)
		}
	}
	if _, ok := h.store.UpdateGroup(ctx, g.ID, models.GroupPatch{MemberIDs: remaining}); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}
	if !h.resync(c) {
		return
	}
	c.Status(http.StatusNoContent)
}
