package dag

import (
	"errors"
	"fmt"

	"github.com/LENAX/grade-engine/pkg/core/types"
)

// 编译期结构错误（对外导出）
var (
	ErrGraphInvalid           = errors.New("图结构非法")
	ErrMissingOrAmbiguousRoot = errors.New("缺少输入节点或输入节点不唯一")
	ErrUnreachableNode        = errors.New("节点无法从输入节点到达")
	ErrUnknownNodeKind        = errors.New("未知的节点类型")
	ErrCycleDetected          = errors.New("检测到循环依赖")
)

// GraphInvalidError 编译失败的详细信息（对外导出）
// Kind 为上面的某个哨兵错误，Node 为出问题的节点（根检查失败时可能为空）
type GraphInvalidError struct {
	Kind   error
	Node   types.NodeID
	Detail string
}

func (e *GraphInvalidError) Error() string {
	msg := e.Kind.Error()
	if e.Node != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Node)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Detail)
	}
	return msg
}

// Unwrap 同时匹配 ErrGraphInvalid 与具体类别
func (e *GraphInvalidError) Unwrap() []error {
	return []error{ErrGraphInvalid, e.Kind}
}

func invalid(kind error, node types.NodeID, detail string) *GraphInvalidError {
	return &GraphInvalidError{Kind: kind, Node: node, Detail: detail}
}
