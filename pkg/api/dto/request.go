package dto

// GradeRequest 单个评分对象的评分请求
type GradeRequest struct {
	Subject string `json:"subject" binding:"required"`
}

// BatchGradeRequest 批量评分请求
type BatchGradeRequest struct {
	Subjects []string `json:"subjects" binding:"required,min=1,dive,required"`
}

// ListQueryRequest 通用列表查询请求
type ListQueryRequest struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// GetDefaultLimit 获取默认limit
func (r *ListQueryRequest) GetDefaultLimit() int {
	if r.Limit <= 0 {
		return 20
	}
	return r.Limit
}
