package registry

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/LENAX/grade-engine/pkg/core/types"
)

// 内置函数通用参数
const (
	ParamFrom      = "from"      // 读取哪个前置节点的值
	ParamCriterion = "criterion" // 评分项名称，默认使用节点ID
	ParamPoints    = "points"    // 满足条件时的得分，默认 1
)

// RegisterBuiltins 注册内置的上下文与评分函数（对外导出）
func RegisterBuiltins(r *Registry) error {
	contexts := []struct {
		name, desc string
		b          ContextBuilder
	}{
		{"subject.dir", "把评分对象解析为本地目录（params: root）", subjectDir},
		{"fs.tree", "列出目录下全部文件的相对路径（params: from, skip）", fsTree},
		{"fs.file", "读取目录下某个文件的内容（params: from, path, optional）", fsFile},
	}
	for _, c := range contexts {
		if err := r.RegisterContext(c.name, c.desc, c.b); err != nil {
			return err
		}
	}

	evaluators := []struct {
		name, desc string
		b          EvaluatorBuilder
	}{
		{"fs.exists", "文件列表中存在匹配 path 的文件（params: from, path, points）", fsExists},
		{"text.contains", "文本匹配正则 pattern（params: from, pattern, points）", textContains},
		{"html.selector", "HTML 中 selector 命中数不少于 min（params: from, selector, min, text, points）", htmlSelector},
	}
	for _, e := range evaluators {
		if err := r.RegisterEvaluator(e.name, e.desc, e.b); err != nil {
			return err
		}
	}
	return nil
}

func subjectDir(params Params) (types.ContextFactory, error) {
	root := params.Get("root", "")
	return func(p types.Pass) (any, error) {
		subject, ok := p.Subject().(string)
		if !ok || subject == "" {
			return nil, fmt.Errorf("评分对象必须是非空路径字符串，实际: %T", p.Subject())
		}
		dir := subject
		if root != "" && !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		dir = filepath.Clean(dir)
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("读取目录失败: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s 不是目录", dir)
		}
		return dir, nil
	}, nil
}

func fsTree(params Params) (types.ContextFactory, error) {
	from, err := params.Require(ParamFrom)
	if err != nil {
		return nil, err
	}
	skip := make(map[string]bool)
	for _, name := range strings.Split(params.Get("skip", ".git"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			skip[name] = true
		}
	}
	return func(p types.Pass) (any, error) {
		dir, err := types.ValueAs[string](p, types.NodeID(from))
		if err != nil {
			return nil, err
		}
		files := make([]string, 0)
		err = filepath.WalkDir(dir, func(full string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if full != dir && skip[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			rel, err := filepath.Rel(dir, full)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("遍历目录失败: %w", err)
		}
		sort.Strings(files)
		return files, nil
	}, nil
}

func fsFile(params Params) (types.ContextFactory, error) {
	from, err := params.Require(ParamFrom)
	if err != nil {
		return nil, err
	}
	rel, err := params.Require("path")
	if err != nil {
		return nil, err
	}
	optional := params.Get("optional", "false") == "true"
	return func(p types.Pass) (any, error) {
		dir, err := types.ValueAs[string](p, types.NodeID(from))
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			if optional && os.IsNotExist(err) {
				return "", nil
			}
			return nil, fmt.Errorf("读取文件失败: %w", err)
		}
		return string(data), nil
	}, nil
}

// scoring 评分函数共用的参数
type scoring struct {
	from      types.NodeID
	criterion string
	points    float64
}

func newScoring(params Params) (scoring, error) {
	from, err := params.Require(ParamFrom)
	if err != nil {
		return scoring{}, err
	}
	points, err := params.Float(ParamPoints, 1)
	if err != nil {
		return scoring{}, err
	}
	return scoring{from: types.NodeID(from), criterion: params.Get(ParamCriterion, ""), points: points}, nil
}

func (s scoring) record(passed bool, justification string) types.ScoreRecord {
	value := 0.0
	if passed {
		value = s.points
	}
	return types.ScoreRecord{Criterion: s.criterion, Value: value, Justification: justification}
}

func fsExists(params Params) (types.Evaluator, error) {
	s, err := newScoring(params)
	if err != nil {
		return nil, err
	}
	pattern, err := params.Require("path")
	if err != nil {
		return nil, err
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("非法的路径模式 %q: %w", pattern, err)
	}
	return func(p types.Pass) (types.ScoreRecord, error) {
		files, err := types.ValueAs[[]string](p, s.from)
		if err != nil {
			return types.ScoreRecord{}, err
		}
		for _, f := range files {
			if ok, _ := path.Match(pattern, f); ok {
				return s.record(true, fmt.Sprintf("找到 %s", f)), nil
			}
		}
		return s.record(false, fmt.Sprintf("未找到匹配 %s 的文件", pattern)), nil
	}, nil
}

func textContains(params Params) (types.Evaluator, error) {
	s, err := newScoring(params)
	if err != nil {
		return nil, err
	}
	raw, err := params.Require("pattern")
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("非法的正则 %q: %w", raw, err)
	}
	return func(p types.Pass) (types.ScoreRecord, error) {
		text, err := types.ValueAs[string](p, s.from)
		if err != nil {
			return types.ScoreRecord{}, err
		}
		if loc := re.FindStringIndex(text); loc != nil {
			return s.record(true, fmt.Sprintf("匹配 %q", text[loc[0]:loc[1]])), nil
		}
		return s.record(false, fmt.Sprintf("未匹配 %s", raw)), nil
	}, nil
}

func htmlSelector(params Params) (types.Evaluator, error) {
	s, err := newScoring(params)
	if err != nil {
		return nil, err
	}
	selector, err := params.Require("selector")
	if err != nil {
		return nil, err
	}
	minCount, err := params.Int("min", 1)
	if err != nil {
		return nil, err
	}
	want := params.Get("text", "")
	return func(p types.Pass) (types.ScoreRecord, error) {
		html, err := types.ValueAs[string](p, s.from)
		if err != nil {
			return types.ScoreRecord{}, err
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return types.ScoreRecord{}, fmt.Errorf("解析HTML失败: %w", err)
		}
		count := 0
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			if want == "" || strings.Contains(strings.TrimSpace(sel.Text()), want) {
				count++
			}
		})
		passed := count >= minCount
		return s.record(passed, fmt.Sprintf("%s 命中 %d 个（要求至少 %d 个）", selector, count, minCount)), nil
	}, nil
}
