package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shreyasurfriend/scavenger-hunt/services"
)

type ActivityController struct {
	Activities *services.ActivityService
}

func NewActivityController(activities *services.ActivityService) *ActivityController {
	return &ActivityController{Activities: activities}
}

func (ac *ActivityController) List(c *gin.Context) {
	age := 0
	if v := c.Query("age"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "age must be a number"})
			return
		}
		age = parsed
	}

	activities, err := ac.Activities.ListActivities(c.Request.Context(), c.Query("category"), age)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": activities})
}

func (ac *ActivityController) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	activity, err := ac.Activities.GetActivity(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrLedgerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Activity not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, activity)
}

type generateActivitiesRequest struct {
	Category string `json:"category" binding:"required"`
	AgeMin   int    `json:"age_min" binding:"required,min=5,max=12"`
	AgeMax   int    `json:"age_max" binding:"required,min=5,max=12"`
	Location string `json:"location" binding:"required"`
	Count    int    `json:"count"`
}

func (ac *ActivityController) Generate(c *gin.Context) {
	var body generateActivitiesRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	activities, err := ac.Activities.GenerateActivities(c.Request.Context(), body.Category, body.AgeMin, body.AgeMax, body.Count, body.Location)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Activity generation is unavailable right now", "kind": string(verr.Kind)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"activities": activities})
}
