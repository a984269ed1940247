package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"dnd_chat_server/internal/config"
	dao "dnd_chat_server/internal/dao/mysql"
	myredis "dnd_chat_server/internal/dao/redis"
	"dnd_chat_server/internal/handler"
	"dnd_chat_server/internal/https_server"
	"dnd_chat_server/internal/infrastructure/logger"
	"dnd_chat_server/internal/service"
	"dnd_chat_server/internal/service/chat"
	"dnd_chat_server/pkg/util/jwt"
	"dnd_chat_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	conf := config.GetConfig()

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, "dev"); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	zap.L().Info("日志初始化成功")

	// 3. 初始化数据库（建表并保证全局房间存在）
	repos := dao.Init()
	zap.L().Info("数据库初始化成功")

	// 4. 初始化 Redis
	cache := myredis.Init()
	zap.L().Info("Redis 初始化成功")

	// 5. 初始化 JWT（身份签发在外部身份服务，这里只做校验，密钥需一致）
	jwt.Init(conf.JWTConfig.Secret, conf.JWTConfig.AccessTokenExpiry)
	zap.L().Info("JWT 初始化成功")

	// 6. 初始化雪花算法（消息 id）
	snowflake.Init(conf.SnowflakeConfig.MachineID)

	// 7. 初始化 Service 层（依赖注入）
	services := service.NewServices(repos, cache)
	zap.L().Info("Service 层初始化成功")

	// 8. 初始化 ChatServer，按配置选择广播模式
	var broker chat.MessageBroker
	if conf.KafkaConfig.MessageMode == "kafka" {
		broker = chat.NewKafkaBroker()
	} else {
		broker = chat.NewChannelBroker()
	}
	chatServer := chat.NewChatServer(services, broker)
	chatServer.Start()
	zap.L().Info("ChatServer 初始化成功", zap.String("messageMode", conf.KafkaConfig.MessageMode))

	// 9. 初始化 validator 翻译器和 HTTP 服务器
	if err := handler.InitTrans("zh"); err != nil {
		zap.L().Fatal("validator 翻译器初始化失败", zap.Error(err))
	}
	handlers := handler.NewHandlers(services, chatServer)
	engine := https_server.Init(handlers)
	zap.L().Info("HTTP 服务器初始化成功")

	// 10. 启动服务
	host := conf.MainConfig.Host
	port := conf.MainConfig.Port

	go func() {
		if err := engine.Run(fmt.Sprintf("%s:%d", host, port)); err != nil {
			zap.L().Fatal("server running fault", zap.Error(err))
		}
	}()

	// 设置信号监听
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.L().Info("关闭服务器...")
	chatServer.Close()
	zap.L().Info("服务器已关闭")
}
