package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/LENAX/grade-engine/pkg/api"
	"github.com/LENAX/grade-engine/pkg/config"
	"github.com/LENAX/grade-engine/pkg/core/engine"
)

var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "./configs/grade-engine.yaml", "引擎配置文件路径")
	flag.Parse()

	log.Printf("Grade Engine Server v%s (%s, %s)", Version, GitCommit, BuildTime)
	log.Printf("配置文件: %s", *configPath)

	// 1. 加载配置并构建Engine
	cfg, err := config.LoadFrameworkConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	eng, err := engine.NewEngineBuilder(*configPath).WithConfig(cfg).Build()
	if err != nil {
		log.Fatalf("创建Engine失败: %v", err)
	}

	// 2. 启动Engine（含定时评分）
	if err := eng.Start(context.Background()); err != nil {
		log.Fatalf("启动Engine失败: %v", err)
	}

	// 3. 创建并启动API服务器
	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.GradeEngine.Server.Host
	serverConfig.Port = cfg.GradeEngine.Server.Port
	apiServer := api.NewAPIServer(eng, serverConfig, Version)

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Printf("API服务器错误: %v", err)
		}
	}()

	log.Printf("✅ Grade Engine Server started on %s", apiServer.Addr())

	// 4. 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 5. 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.WriteTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("关闭API服务器失败: %v", err)
	}

	eng.Stop()
	log.Println("✅ 服务已停止")
}
