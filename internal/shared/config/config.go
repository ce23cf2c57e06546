package config

import (
	"errors"
	"os"
	"path/filepath"
)

const defaultConfigRelPath = "configs/conf.yml"

// EnvConfigPath 指定配置文件路径的环境变量，优先级低于显式传入的路径。
const EnvConfigPath = "PLAYERSYNC_CONFIG"

var ErrConfigNotFound = errors.New("config file not found")

// Resolve 解析配置文件路径：
// 1) 传入 cfgName（相对/绝对路径）则优先使用；
// 2) 其次读 PLAYERSYNC_CONFIG；
// 3) 否则从当前目录开始向上查找 `configs/conf.yml`。
func Resolve(cfgName string) (string, error) {
	if cfgName == "" {
		cfgName = os.Getenv(EnvConfigPath)
	}
	curDir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if cfgName != "" {
		if !filepath.IsAbs(cfgName) {
			cfgName = filepath.Join(curDir, cfgName)
		}
		if !fileExist(cfgName) {
			return "", ErrConfigNotFound
		}
		return cfgName, nil
	}
	return findConfigUpward(curDir)
}

func findConfigUpward(startDir string) (string, error) {
	dir := startDir
	for {
		candidate := filepath.Join(dir, defaultConfigRelPath)
		if fileExist(candidate) {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrConfigNotFound
		}
		dir = parent
	}
}

func fileExist(fileName string) bool {
	_, err := os.Stat(fileName)
	return err == nil
}
