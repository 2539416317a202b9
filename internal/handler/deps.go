package handler

import (
	"dominet/internal/app/game"
	"dominet/internal/app/play"
	"dominet/internal/configs"
)

type AppDeps struct {
	Coordinator *play.Coordinator
	Gateway     game.Gateway
	Config      *configs.AppConfig
}
