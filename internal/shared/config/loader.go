package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const envPrefix = "PLAYERSYNC"

// Load 把配置文件解码成 T。
//
// defaults 的 key 用点分路径（例如 "sync.local_retry_attempts"），只在文件和环境变量都没给值时生效。
// 环境变量覆盖：PLAYERSYNC_SYNC_LOCAL_RETRY_ATTEMPTS=5。
// onChange 非空时监听文件变更，每次变更解码出一份新的 T 交给回调；
// 这里不回写调用方持有的配置，热更新哪些字段由回调自己决定。
func Load[T any](cfgName string, defaults map[string]any, onChange func(T)) (T, string, error) {
	var out T

	path, err := Resolve(cfgName)
	if err != nil {
		return out, "", fmt.Errorf("resolve config %q: %w", cfgName, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if err = v.ReadInConfig(); err != nil {
		return out, path, fmt.Errorf("read config %s: %w", path, err)
	}
	if err = v.Unmarshal(&out, decodeHook()); err != nil {
		return out, path, fmt.Errorf("decode config %s: %w", path, err)
	}

	if onChange != nil {
		v.OnConfigChange(func(e fsnotify.Event) {
			var next T
			if err := v.Unmarshal(&next, decodeHook()); err != nil {
				log.Printf("配置文件变更但解码失败, file=%s err=%v", e.Name, err)
				return
			}
			onChange(next)
		})
		v.WatchConfig()
	}
	return out, path, nil
}

func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}
