package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"PlayerSync/internal/player/actors"
	"PlayerSync/internal/player/app/port"
	"PlayerSync/internal/player/codec"
	"PlayerSync/internal/player/events"
	rediscache "PlayerSync/internal/player/infra/cache/redis"
	memstore "PlayerSync/internal/player/infra/persistence/memory"
	playermongo "PlayerSync/internal/player/infra/persistence/mongodb"
	playermysql "PlayerSync/internal/player/infra/persistence/mysql"
	playersqlite "PlayerSync/internal/player/infra/persistence/sqlite"
	"PlayerSync/internal/player/interfaces"
	"PlayerSync/internal/player/registry"
	"PlayerSync/internal/player/service"
	"PlayerSync/internal/shared/executor"
	shareddb "PlayerSync/internal/shared/infrastructure/db"
	sharedmongo "PlayerSync/internal/shared/infrastructure/mongo"
	sharedredis "PlayerSync/internal/shared/infrastructure/redis"
	sharedsqlite "PlayerSync/internal/shared/infrastructure/sqlite"
	"PlayerSync/internal/shared/logs"
	"PlayerSync/internal/shared/metrics"
	"PlayerSync/internal/shared/security"
	"PlayerSync/internal/shared/serverconfig"
	"PlayerSync/internal/shared/transport"
	transportgrpc "PlayerSync/internal/shared/transport/grpc"
	transporthttp "PlayerSync/internal/shared/transport/http"
	"PlayerSync/internal/shared/transport/ws"
	"PlayerSync/modules/kit/logx"
)

type closer interface {
	Close(ctx context.Context) error
}

func openStore(ctx context.Context, conf serverconfig.Config, logger *zap.Logger) (port.DurableStore, closer, error) {
	switch conf.Store.Driver {
	case "mongodb":
		client, err := sharedmongo.Open(ctx, conf.MongoDB, logger)
		if err != nil {
			return nil, nil, err
		}
		repo := playermongo.NewPlayerRepo(client, conf.MongoDB.Database, conf.MongoDB.Collection)
		return repo, repo, nil
	case "mysql":
		db, err := shareddb.Open(conf.MySQL)
		if err != nil {
			return nil, nil, err
		}
		repo := playermysql.NewPlayerRepo(db)
		if err := repo.Migrate(ctx); err != nil {
			_ = repo.Close(ctx)
			return nil, nil, err
		}
		return repo, repo, nil
	case "sqlite":
		db, err := sharedsqlite.Open(ctx, conf.SQLite, logger)
		if err != nil {
			return nil, nil, err
		}
		repo := playersqlite.NewPlayerRepo(db)
		if err := repo.Migrate(ctx); err != nil {
			_ = repo.Close(ctx)
			return nil, nil, err
		}
		return repo, repo, nil
	case "memory", "":
		logger.Warn("memory store is process local, records do not survive restart")
		store := memstore.NewStore()
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", conf.Store.Driver)
	}
}

func openCache(ctx context.Context, conf serverconfig.Config, logger *zap.Logger) (port.FastCache, closer, error) {
	if !conf.Sync.FastCacheEnabled {
		return nil, nil, nil
	}
	client, err := sharedredis.Open(ctx, conf.Redis, logger)
	if err != nil {
		return nil, nil, err
	}
	c := rediscache.NewCache(client, conf.Redis.KeyPrefix)
	return c, c, nil
}

// issueToken 给接入层签发一个调用方 token，打印到 stdout 后退出。
func issueToken(auth serverconfig.AuthConfig, caller string, ttl time.Duration) error {
	if auth.Secret == "" {
		return errors.New("auth.secret is empty, nothing to sign with")
	}
	signer, err := security.NewSigner(auth.Secret, auth.Issuer)
	if err != nil {
		return err
	}
	token, err := signer.Award(caller, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func main() {
	cfgPath := flag.String("config", "", "配置文件路径，默认查找 configs/conf.yml")
	caller := flag.String("issue-token", "", "给指定调用方签发 token 后退出")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "签发 token 的有效期")
	flag.Parse()

	path := serverconfig.Load(*cfgPath, func(c serverconfig.Config) {
		// 只热更新日志级别；同步参数需要重启生效
		logs.SetLevel(c.Log.Level)
		logs.Info("config reloaded", zap.String("log_level", c.Log.Level))
	})
	conf := serverconfig.Conf
	if *caller != "" {
		if err := issueToken(conf.Auth, *caller, *tokenTTL); err != nil {
			fmt.Fprintln(os.Stderr, "issue token:", err)
			os.Exit(1)
		}
		return
	}
	if err := logs.Init(conf.Server.Name, conf.Log); err != nil {
		panic(err)
	}
	defer func() { _ = logs.Sync() }()
	logs.Info("conf", zap.String("path", path), zap.Any("sync", conf.Sync), zap.String("store", conf.Store.Driver))

	logger := logs.Logger()
	l := logx.NewZapLogger(logger)

	startCtx, startCancel := context.WithTimeout(context.Background(), 15*time.Second)
	store, storeCloser, err := openStore(startCtx, conf, logger)
	if err != nil {
		startCancel()
		logs.Fatal("open store failed", zap.String("driver", conf.Store.Driver), zap.Error(err))
	}
	cache, cacheCloser, err := openCache(startCtx, conf, logger)
	startCancel()
	if err != nil {
		logs.Fatal("open fast cache failed", zap.Error(err))
	}

	cdc, err := codec.New(conf.Sync.Codec)
	if err != nil {
		logs.Fatal("codec", zap.Error(err))
	}

	m := metrics.New()
	ex := executor.New(conf.Sync.IOWorkers, executor.WithPanicHandler(func(p any) {
		logs.Error("io task panic", zap.Any("panic", p))
	}))
	deps := &actors.Deps{
		Store:    store,
		Cache:    cache,
		Codec:    cdc,
		Registry: registry.New(),
		Executor: ex,
		Metrics:  m,
		Logger:   l,
		Options:  actors.OptionsFromConfig(conf.Sync),
	}
	svc := service.New(deps)
	svc.Start()

	bus := events.NewBus(1024)
	subCtx, subCancel := context.WithCancel(context.Background())
	subDone := make(chan struct{})
	go func() {
		defer close(subDone)
		if err := svc.Subscribe(subCtx, bus); err != nil && !errors.Is(err, context.Canceled) {
			logs.Error("event subscription stopped", zap.Error(err))
		}
	}()

	var signer *security.Signer
	if conf.Auth.Secret != "" {
		signer, err = security.NewSigner(conf.Auth.Secret, conf.Auth.Issuer)
		if err != nil {
			logs.Fatal("auth signer", zap.Error(err))
		}
	} else {
		logs.Warn("auth secret is empty, /v1 is unauthenticated")
	}

	gin.SetMode(gin.ReleaseMode)
	if conf.Log.Dev {
		gin.SetMode(gin.DebugMode)
	}
	httpServer := transporthttp.NewHttpServer(conf.HTTPServer.Addr(), gin.New(), l, transporthttp.Options{
		Signer:   signer,
		Gatherer: m.Registry,
		Ready:    func() bool { return !svc.Draining() },
	})

	module := interfaces.New(svc, bus, l)
	module.HttpRegister(httpServer.Group())

	router := ws.NewRouter(l)
	module.WsRegister(router)
	wsServer := ws.NewServer(router, l)
	// Auth 中间件已把调用方写进请求的 access 日志上下文
	wsServer.CallerOf = func(r *nethttp.Request) string {
		if al := transport.FromContext(r.Context()); al != nil {
			return al.Caller
		}
		return ""
	}
	httpServer.Group().GET("/link", gin.WrapH(wsServer))

	grpcServer := transportgrpc.NewServer(conf.GRPCServer.Addr())
	if err := grpcServer.Listen(); err != nil {
		logs.Fatal("listen grpc failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		logs.Info("http server started", zap.String("addr", conf.HTTPServer.Addr()))
		if err := httpServer.Start(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve failed: %w", err)
			return
		}
		errCh <- nil
	}()
	go func() {
		logs.Info("grpc health server started", zap.String("addr", grpcServer.Addr()))
		if err := grpcServer.Serve(); err != nil {
			errCh <- fmt.Errorf("grpc serve failed: %w", err)
			return
		}
		errCh <- nil
	}()
	grpcServer.SetServing(true)

	select {
	case <-ctx.Done():
		logs.Info("收到退出信号，准备优雅退出")
	case err := <-errCh:
		if err != nil {
			logs.Error("服务异常退出", zap.Error(err))
		}
	}

	timeout := time.Duration(conf.Sync.ShutdownTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// 先摘流量，再停事件入口，最后把所有玩家写回存储并解锁
	grpcServer.SetServing(false)
	subCancel()
	<-subDone
	bus.Close()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		logs.Error("player sync shutdown incomplete", zap.Error(err))
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logs.Warn("http shutdown", zap.Error(err))
	}
	grpcServer.Stop(shutdownCtx)

	for _, c := range []closer{cacheCloser, storeCloser} {
		if c == nil {
			continue
		}
		if err := c.Close(shutdownCtx); err != nil {
			logs.Warn("close backend", zap.Error(err))
		}
	}
	logs.Info("bye")
}
