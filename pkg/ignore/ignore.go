// Package ignore 决定目录批量上传时哪些文件被跳过
package ignore

import (
	"io/fs"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName 用户自定义规则文件，语法同 .gitignore
const FileName = ".sdignore"

// 始终生效的规则: 工作目录元数据与钱包材料绝不能被上传
var defaultRules = []string{
	".sealdrive",
	".git",
	"keystore",
	"*.key",
	"config.yaml",
	".env",
	FileName,
	".DS_Store",
	"Thumbs.db",
}

// Matcher 判断相对路径是否应跳过
type Matcher struct {
	rules *gitignore.GitIgnore
}

// NewMatcher 合并默认规则与 root 下的 .sdignore (存在时)
func NewMatcher(root string) (*Matcher, error) {
	path := filepath.Join(root, FileName)
	if _, err := os.Stat(path); err != nil {
		return &Matcher{rules: gitignore.CompileIgnoreLines(defaultRules...)}, nil
	}

	rules, err := gitignore.CompileIgnoreFileAndLines(path, defaultRules...)
	if err != nil {
		return nil, err
	}
	return &Matcher{rules: rules}, nil
}

// Matches rel 为相对 root 的路径 (例如 "docs/report.pdf")
func (m *Matcher) Matches(rel string) bool {
	if m == nil || m.rules == nil {
		return false
	}
	return m.rules.MatchesPath(filepath.ToSlash(rel))
}

// Collect 列出 root 下所有未被忽略的普通文件 (字典序)
// 被忽略的目录整体跳过，不再下探
func Collect(root string) ([]string, error) {
	m, err := NewMatcher(root)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return err
		}
		if m.Matches(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
