package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// 全局变量
	serverURL  string
	outputJSON bool
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "grade-engine",
	Short: "Grade Engine CLI - 评分引擎命令行工具",
	Long: `Grade Engine CLI 是一个按评分图对提交物评分的命令行工具。

支持的功能：
  - 校验、查看评分清单（plan validate / plan inspect / plan funcs）
  - 本地对一个或多个评分对象评分（grade）
  - 查询评分服务上的计划与记录（remote）
  - 启动HTTP API服务

使用示例：
  # 校验评分清单
  grade-engine plan validate ./plans/readme.yaml

  # 本地评分
  grade-engine grade ./plans/readme.yaml ./submissions/alice ./submissions/bob

  # 启动HTTP服务
  grade-engine server start --config ./configs/grade-engine.yaml`,
	SilenceUsage: true,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "Grade Engine服务器地址")
	rootCmd.PersistentFlags().BoolVarP(&outputJSON, "json", "j", false, "使用JSON格式输出")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(gradeCmd)
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(versionCmd)
}
