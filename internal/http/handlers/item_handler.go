// Item HTTP endpoints.
//
//   - POST   /items       (create)
//   - GET    /items       (list, paginated, weak ETag)
//   - GET    /items/{id}  (read)
//   - DELETE /items/{id}  (delete)
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-resilient-api/internal/domain"
	"github.com/tbourn/go-resilient-api/internal/http/middleware"
	"github.com/tbourn/go-resilient-api/internal/resilience"
)

// CreateItemRequest is the JSON payload for creating an item.
type CreateItemRequest struct {
	Name string `json:"name" binding:"required,max=120" example:"Desk lamp"`
	Note string `json:"note" binding:"max=2000"         example:"warm white"`
}

// ListItemsResponse wraps a page of items and pagination information.
type ListItemsResponse struct {
	Items      []domain.Item `json:"items"`
	Pagination Pagination    `json:"pagination"`
}

// CreateItem godoc
// @ID          createItem
// @Summary     Create an item
// @Tags        Items
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.CreateItemRequest  true  "Create item payload"
// @Success     201   {object}  domain.Item
// @Failure     400   {object}  resilience.ErrorEnvelope  "Malformed body or duplicate name"
// @Failure     422   {object}  resilience.ErrorEnvelope  "Validation failed"
// @Router      /items [post]
func (h *Handlers) CreateItem(c *gin.Context) (any, error) {
	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, bindError(err)
	}
	it, err := h.items.Create(c.Request.Context(), req.Name, req.Note)
	if err != nil {
		return nil, err
	}
	middleware.LoggerFrom(c).Debug().Str("item_id", it.ID).Msg("item created")
	return middleware.Created(it), nil
}

// ListItems godoc
// @ID          listItems
// @Summary     List items (paginated)
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Items
// @Produce     json
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListItemsResponse
// @Success     304  {string}  string  "Not Modified"
// @Router      /items [get]
func (h *Handlers) ListItems(c *gin.Context) (any, error) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var hdr http.Header
	if h.stats != nil {
		if count, ts, err := h.stats(ctx); err == nil {
			etag := fmt.Sprintf(`W/"items:%d:%d:%d:%d"`, count, ts, page, pageSize)
			hdr = http.Header{"Etag": {etag}}
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				return middleware.Result{Status: http.StatusNotModified, Header: hdr}, nil
			}
		}
	}

	items, total, err := h.items.ListPage(ctx, page, pageSize)
	if err != nil {
		return nil, err
	}
	return middleware.Result{
		Status: http.StatusOK,
		Header: hdr,
		Body:   ListItemsResponse{Items: items, Pagination: newPagination(page, pageSize, total)},
	}, nil
}

// GetItem godoc
// @ID          getItem
// @Summary     Get an item
// @Tags        Items
// @Produce     json
// @Param       id   path      string  true  "Item ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.Item
// @Failure     400  {object}  resilience.ErrorEnvelope  "Bad id"
// @Failure     404  {object}  resilience.ErrorEnvelope  "Item not found"
// @Router      /items/{id} [get]
func (h *Handlers) GetItem(c *gin.Context) (any, error) {
	id, err := itemID(c)
	if err != nil {
		return nil, err
	}
	return h.items.Get(c.Request.Context(), id)
}

// DeleteItem godoc
// @ID          deleteItem
// @Summary     Delete an item
// @Tags        Items
// @Param       id   path    string  true  "Item ID (UUID)"  format(uuid)
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  resilience.ErrorEnvelope  "Item not found"
// @Router      /items/{id} [delete]
func (h *Handlers) DeleteItem(c *gin.Context) (any, error) {
	id, err := itemID(c)
	if err != nil {
		return nil, err
	}
	return nil, h.items.Delete(c.Request.Context(), id)
}

func itemID(c *gin.Context) (string, error) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", resilience.BadRequest("Item id must be a UUID", map[string]any{"id": id})
	}
	return id, nil
}
