package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shreyasurfriend/scavenger-hunt/services"
	"github.com/shreyasurfriend/scavenger-hunt/utils"
)

type ChildController struct {
	Children *services.ChildService
	Ledger   *services.LedgerService
	Push     *services.PushService
}

func NewChildController(children *services.ChildService, ledger *services.LedgerService, push *services.PushService) *ChildController {
	return &ChildController{Children: children, Ledger: ledger, Push: push}
}

type registerChildRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	DateOfBirth string `json:"date_of_birth" binding:"required"` // YYYY-MM-DD
	Password    string `json:"password"`
	ParentEmail string `json:"parent_email"`
}

func (cc *ChildController) Register(c *gin.Context) {
	var body registerChildRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dob, err := time.Parse("2006-01-02", body.DateOfBirth)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date_of_birth must be YYYY-MM-DD"})
		return
	}
	if body.Password != "" && len(body.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 6 characters"})
		return
	}

	child, err := cc.Children.RegisterChild(c.Request.Context(), body.Name, dob, body.Password, body.ParentEmail)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":            child.ID,
		"name":          child.Name,
		"age":           utils.AgeYears(child.DateOfBirth, time.Now()),
		"token_balance": child.TokenBalance,
	})
}

func (cc *ChildController) GetChild(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	child, err := cc.Children.GetChild(c.Request.Context(), id)
	if err != nil {
		childError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":            child.ID,
		"name":          child.Name,
		"age":           utils.AgeYears(child.DateOfBirth, time.Now()),
		"token_balance": child.TokenBalance,
	})
}

func (cc *ChildController) GetTokens(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	child, err := cc.Children.GetChild(c.Request.Context(), id)
	if err != nil {
		childError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"child_id": child.ID, "tokens": child.TokenBalance})
}

func (cc *ChildController) ListCompletions(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := cc.Children.GetChild(c.Request.Context(), id); err != nil {
		childError(c, err)
		return
	}
	completions, err := cc.Ledger.ListCompletions(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"child_id": id, "completions": completions})
}

type registerDeviceRequest struct {
	Platform string `json:"platform" binding:"required"` // "android" | "ios"
	Token    string `json:"token" binding:"required"`
}

func (cc *ChildController) RegisterDevice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := cc.Children.GetChild(c.Request.Context(), id); err != nil {
		childError(c, err)
		return
	}

	var body registerDeviceRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dev, err := cc.Push.RegisterDevice(id, body.Platform, body.Token)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"device_id": dev.ID, "platform": dev.Platform})
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func childError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrLedgerNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Child not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
