package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LENAX/grade-engine/pkg/api"
	"github.com/LENAX/grade-engine/pkg/cli/output"
	"github.com/LENAX/grade-engine/pkg/config"
	"github.com/LENAX/grade-engine/pkg/core/engine"
)

var (
	serverPort int
	configPath string
	serverHost string
)

// 未指定 --config 时依次尝试的路径
var defaultConfigPaths = []string{
	"./configs/grade-engine.yaml",
	"./config/grade-engine.yaml",
	"./grade-engine.yaml",
}

// serverCmd server子命令
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "服务管理命令",
	Long:  `管理Grade Engine HTTP API服务。`,
}

// serverStartCmd 启动服务
var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "启动HTTP API服务",
	Long: `启动Grade Engine HTTP API服务。

示例：
  # 使用默认配置启动
  grade-engine server start

  # 指定端口启动（覆盖配置文件中的 server.port）
  grade-engine server start --port 8080

  # 指定配置文件启动
  grade-engine server start --config ./configs/grade-engine.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath(configPath)
		if err != nil {
			output.Error("未找到配置文件，请使用 --config 指定")
			return err
		}
		output.Info("使用配置文件: %s", path)

		cfg, err := config.LoadFrameworkConfig(path)
		if err != nil {
			output.Error("加载配置失败: %v", err)
			return err
		}
		if cmd.Flags().Changed("host") {
			cfg.GradeEngine.Server.Host = serverHost
		}
		if cmd.Flags().Changed("port") {
			cfg.GradeEngine.Server.Port = serverPort
		}

		eng, err := engine.NewEngineBuilder(path).WithConfig(cfg).Build()
		if err != nil {
			output.Error("创建Engine失败: %v", err)
			return err
		}

		ctx := context.Background()
		if err := eng.Start(ctx); err != nil {
			output.Error("启动Engine失败: %v", err)
			return err
		}

		serverConfig := api.DefaultServerConfig()
		serverConfig.Host = cfg.GradeEngine.Server.Host
		serverConfig.Port = cfg.GradeEngine.Server.Port
		apiServer := api.NewAPIServer(eng, serverConfig, Version)

		go func() {
			if err := apiServer.Start(); err != nil {
				log.Printf("API服务器错误: %v", err)
			}
		}()

		output.Success("Grade Engine Server started on %s", apiServer.Addr())

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		output.Info("正在关闭服务...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.WriteTimeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			output.Error("关闭API服务器失败: %v", err)
		}

		eng.Stop()
		output.Success("服务已停止")
		return nil
	},
}

func init() {
	serverStartCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "监听端口")
	serverStartCmd.Flags().StringVarP(&serverHost, "host", "H", "0.0.0.0", "监听地址")
	serverStartCmd.Flags().StringVarP(&configPath, "config", "c", "", "配置文件路径")

	serverCmd.AddCommand(serverStartCmd)
}

// resolveConfigPath 返回指定的配置路径，未指定时查找默认路径
func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	for _, p := range defaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("config file not found")
}
