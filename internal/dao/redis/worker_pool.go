package redis

import (
	"go.uber.org/zap"
)

// cacheTask 定义缓存任务（纯闭包模式）
type cacheTask struct {
	Action func()
}

// workerPool 异步缓存任务的 Worker Pool
type workerPool struct {
	tasks chan *cacheTask
}

// newWorkerPool 创建并启动 Worker Pool
// workerNum: 后台协程数量
// bufferSize: 通道缓冲区大小
func newWorkerPool(workerNum int, bufferSize int) *workerPool {
	p := &workerPool{
		tasks: make(chan *cacheTask, bufferSize),
	}
	for i := 0; i < workerNum; i++ {
		go p.run()
	}
	zap.L().Info("Redis cache workers started", zap.Int("workers", workerNum), zap.Int("buffer", bufferSize))
	return p
}

// submit 提交异步缓存任务
func (p *workerPool) submit(action func()) {
	select {
	case p.tasks <- &cacheTask{Action: action}:
		// 成功放入
	default:
		// 降级：同步执行
		zap.L().Warn("Redis cache task channel full, executing synchronously")
		action()
	}
}

// run 单个 Worker 消费循环
func (p *workerPool) run() {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("Redis worker panic", zap.Any("recover", r))
			go p.run() // 重启
		}
	}()

	for task := range p.tasks {
		if task.Action != nil {
			task.Action()
		}
	}
}
