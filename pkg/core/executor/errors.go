package executor

import (
	"errors"
	"fmt"

	"github.com/LENAX/grade-engine/pkg/core/types"
)

// 运行期错误类别（对外导出）
var (
	ErrContextInit = errors.New("上下文初始化失败")
	ErrEvaluator   = errors.New("评分节点执行失败")
	// ErrNodePanic 节点函数发生 panic 时作为 Cause 的一部分返回
	ErrNodePanic = errors.New("节点执行 panic")
	// ErrUndeclaredPrerequisite 节点读取了未声明为前置的节点
	ErrUndeclaredPrerequisite = errors.New("读取了未声明的前置节点")
)

// EngineError 单轮评分失败（对外导出）
// Kind 为 ErrContextInit 或 ErrEvaluator，Node 为失败节点，Cause 为原始错误
type EngineError struct {
	Kind  error
	Node  types.NodeID
	Cause error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: 节点=%s, 原因=%v", e.Kind, e.Node, e.Cause)
}

// Unwrap 同时匹配类别与原始错误
func (e *EngineError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

// AsEngineError 提取 EngineError，失败返回 nil
func AsEngineError(err error) *EngineError {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee
	}
	return nil
}
