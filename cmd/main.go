package main

import (
	"github.com/shreyasurfriend/scavenger-hunt/config"
	"github.com/shreyasurfriend/scavenger-hunt/routes"
	"github.com/shreyasurfriend/scavenger-hunt/utils"
)

func main() {
	config.InitDB()
	utils.InitS3()
	r := routes.SetupRouter()
	r.Run(":8080")
}
