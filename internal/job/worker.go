package job

import "sync"

// forEachConcurrent 有界并发地跑一批任务
//
// 分发任务一次要处理几千上万个用户/订单，全量串行太慢，无界
// 并发会打爆数据库连接池。workers 控制同时在跑的任务数，所有
// 任务结束后返回。任务之间不允许有顺序依赖
func forEachConcurrent(workers, total int, fn func(i int)) {
	if workers <= 0 {
		workers = 1
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}(i)
	}
	wg.Wait()
}
