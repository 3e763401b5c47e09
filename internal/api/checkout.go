package api

import (
	"errors"
	"net/http"
	"strconv"

	"pos-checkout/internal/apperrors"
	"pos-checkout/internal/models"
	"pos-checkout/internal/receipt"
	"pos-checkout/internal/service"
	"pos-checkout/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type addItemRequest struct {
	ItemID int64 `json:"item_id" binding:"required"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type selectClientRequest struct {
	ClientID int64 `json:"client_id" binding:"required"`
}

type finalizeRequest struct {
	ReceiptType string `json:"receipt_type"`
}

type receiptResponse struct {
	Format      receipt.Format `json:"format"`
	FileName    string         `json:"file_name"`
	ContentType string         `json:"content_type"`
	Content     []byte         `json:"content"`
}

type finalizeResponse struct {
	Sale         models.Sale      `json:"sale"`
	Number       string           `json:"number"`
	Client       models.Client    `json:"client"`
	Receipt      *receiptResponse `json:"receipt,omitempty"`
	ReceiptError gin.H            `json:"receipt_error,omitempty"`
	CatalogError gin.H            `json:"catalog_error,omitempty"`
	Replayed     bool             `json:"replayed"`
}

// login opens an operator session. The backend token never leaves the service.
func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.Validation("invalid request body"))
		return
	}

	sess, err := h.sessions.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": sess.ID,
		"user_name":  sess.UserName,
		"role":       sess.Role,
	})
}

// logout ends the session and discards its checkout
func (h *Handler) logout(c *gin.Context) {
	sess := currentSession(c)

	h.registry.Drop(sess.ID)
	if err := h.sessions.Terminate(c.Request.Context(), sess.ID, service.TerminateLogout); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// checkout returns the session's checkout. A catalog that failed to load is
// reported through the checkout state, not as a request failure.
func (h *Handler) checkout(c *gin.Context) (*service.Checkout, bool) {
	co, err := h.registry.Get(c.Request.Context(), currentSession(c))
	if co == nil {
		writeError(c, err)
		return nil, false
	}
	if err != nil {
		c.Set("checkout_error", err)
	}
	return co, true
}

// checkoutFailed writes err, ending the session when the backend rejected its token
func (h *Handler) checkoutFailed(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrAuth) {
		sess := currentSession(c)
		h.registry.Drop(sess.ID)
		if termErr := h.sessions.Terminate(c.Request.Context(), sess.ID, service.TerminateAuthFailure); termErr != nil {
			util.GetLogger().Error("Failed to terminate session after auth failure",
				zap.String("session_id", sess.ID),
				zap.Error(termErr))
		}
	}
	writeError(c, err)
}

func (h *Handler) writeState(c *gin.Context, status int, co *service.Checkout) {
	body := gin.H{"checkout": co.State()}
	if v, ok := c.Get("checkout_error"); ok {
		body["catalog_error"] = errorBody(v.(error))
	}
	c.JSON(status, body)
}

func itemIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("itemId"), 10, 64)
	if err != nil {
		writeError(c, apperrors.Validation("invalid item ID"))
		return 0, false
	}
	return id, true
}

// getCheckout returns cart lines, totals, selected client and catalog readiness
func (h *Handler) getCheckout(c *gin.Context) {
	co, ok := h.checkout(c)
	if !ok {
		return
	}
	h.writeState(c, http.StatusOK, co)
}

// getCatalog returns the catalog with provisional availability
func (h *Handler) getCatalog(c *gin.Context) {
	co, ok := h.checkout(c)
	if !ok {
		return
	}
	items, ready := co.CatalogItems()
	c.JSON(http.StatusOK, gin.H{
		"ready": ready,
		"items": items,
	})
}

// reloadCatalog refetches the catalog
func (h *Handler) reloadCatalog(c *gin.Context) {
	co, ok := h.checkout(c)
	if !ok {
		return
	}
	if err := co.ReloadCatalog(c.Request.Context(), currentSession(c)); err != nil {
		h.checkoutFailed(c, err)
		return
	}
	items, ready := co.CatalogItems()
	c.JSON(http.StatusOK, gin.H{
		"ready": ready,
		"items": items,
	})
}

// addItem adds one unit of an item to the cart
func (h *Handler) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.Validation("item_id is required"))
		return
	}

	co, ok := h.checkout(c)
	if !ok {
		return
	}
	if err := co.AddItem(req.ItemID); err != nil {
		writeError(c, err)
		return
	}
	h.writeState(c, http.StatusOK, co)
}

// setQuantity sets the quantity of a cart line
func (h *Handler) setQuantity(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.Validation("quantity is required"))
		return
	}

	co, ok := h.checkout(c)
	if !ok {
		return
	}
	if err := co.SetQuantity(itemID, *req.Quantity); err != nil {
		writeError(c, err)
		return
	}
	h.writeState(c, http.StatusOK, co)
}

// removeItem deletes a cart line
func (h *Handler) removeItem(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	co, ok := h.checkout(c)
	if !ok {
		return
	}
	if err := co.RemoveItem(itemID); err != nil {
		writeError(c, err)
		return
	}
	h.writeState(c, http.StatusOK, co)
}

// clearCart empties the cart
func (h *Handler) clearCart(c *gin.Context) {
	co, ok := h.checkout(c)
	if !ok {
		return
	}
	if err := co.ClearCart(); err != nil {
		writeError(c, err)
		return
	}
	h.writeState(c, http.StatusOK, co)
}

// searchClients filters the client directory by q
func (h *Handler) searchClients(c *gin.Context) {
	co, ok := h.checkout(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"clients": co.SearchClients(c.Query("q")),
	})
}

// selectClient sets the purchaser
func (h *Handler) selectClient(c *gin.Context) {
	var req selectClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.Validation("client_id is required"))
		return
	}

	co, ok := h.checkout(c)
	if !ok {
		return
	}
	if _, err := co.SelectClient(req.ClientID); err != nil {
		writeError(c, err)
		return
	}
	h.writeState(c, http.StatusOK, co)
}

// clearClient unsets the purchaser
func (h *Handler) clearClient(c *gin.Context) {
	co, ok := h.checkout(c)
	if !ok {
		return
	}
	if err := co.ClearClient(); err != nil {
		writeError(c, err)
		return
	}
	h.writeState(c, http.StatusOK, co)
}

// finalize submits the sale and returns it with its receipt
func (h *Handler) finalize(c *gin.Context) {
	var req finalizeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, apperrors.Validation("invalid request body"))
			return
		}
	}

	co, ok := h.checkout(c)
	if !ok {
		return
	}

	res, err := h.finalizer.Finalize(c.Request.Context(), currentSession(c), co, service.FinalizeRequest{
		ReceiptType:    req.ReceiptType,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	resp := finalizeResponse{
		Sale:     res.Sale,
		Number:   res.Sale.Number(),
		Client:   res.Client,
		Replayed: res.Replayed,
	}
	if res.Receipt != nil {
		resp.Receipt = &receiptResponse{
			Format:      res.Receipt.Format,
			FileName:    res.Receipt.FileName,
			ContentType: res.Receipt.ContentType,
			Content:     res.Receipt.Body,
		}
	}
	if res.ReceiptErr != nil {
		resp.ReceiptError = errorBody(res.ReceiptErr)
	}
	if res.CatalogErr != nil {
		resp.CatalogError = errorBody(res.CatalogErr)
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}
