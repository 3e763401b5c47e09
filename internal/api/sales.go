package api

import (
	"fmt"
	"net/http"
	"strconv"

	"pos-checkout/internal/apperrors"
	"pos-checkout/internal/receipt"

	"github.com/gin-gonic/gin"
)

// listSales returns archived sales, newest first
func (h *Handler) listSales(c *gin.Context) {
	if h.history == nil {
		writeError(c, apperrors.NotFound("sales archive", "default"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	sales, err := h.history.List(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sales": sales,
	})
}

// saleReceipt regenerates the receipt of an archived sale
func (h *Handler) saleReceipt(c *gin.Context) {
	if h.history == nil {
		writeError(c, apperrors.NotFound("sales archive", "default"))
		return
	}

	saleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, apperrors.Validation("invalid sale ID"))
		return
	}
	format, err := receipt.ParseFormat(c.Query("format"))
	if err != nil {
		writeError(c, err)
		return
	}

	doc, err := h.history.Reissue(c.Request.Context(), saleID, format)
	if err != nil {
		writeError(c, err)
		return
	}

	disposition := "inline"
	if doc.Format == receipt.FormatPDF {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, doc.FileName))
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}
