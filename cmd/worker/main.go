package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"chatcoach/internal/ai"
	"chatcoach/internal/app"
	"chatcoach/internal/bootstrap"
	"chatcoach/internal/cache"
	"chatcoach/internal/repository"
	"chatcoach/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	boot, err := bootstrap.New(ctx)
	if err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}
	defer func() {
		if err := boot.Close(); err != nil {
			log.Printf("close resources failed: %v", err)
		}
	}()

	episodeRepo := repository.NewEpisodeRepository(boot.MySQL)
	characterRepo := repository.NewCharacterRepository(boot.MySQL)
	userRepo := repository.NewUserRepository(boot.MySQL)
	taskRepo := repository.NewTaskRepository(boot.MySQL)

	sessionCache := cache.NewSessionCache(boot.Redis)
	memory := cache.NewConversationMemory(boot.Redis)
	llmClient := ai.NewOpenAICompatibleClient(ai.ChatConfig{
		BaseURL: boot.Config.LLM.BaseURL,
		APIKey:  boot.Config.LLM.APIKey,
		Model:   boot.Config.LLM.Model,
	})

	taskService := app.NewTaskService(
		episodeRepo,
		characterRepo,
		userRepo,
		sessionCache,
		memory,
		llmClient,
		boot.Config.Prompt,
	)

	taskWorker := worker.NewTaskWorker(
		boot.MQConn,
		taskRepo,
		taskService,
		sessionCache,
		boot.Config.RabbitMQ.TaskQueue,
		boot.Config.Task.WorkerConcurrency,
	)
	if err := taskWorker.Start(ctx); err != nil {
		log.Fatalf("start task worker failed: %v", err)
	}
	defer taskWorker.Close()

	log.Printf("task worker consuming %s with concurrency %d",
		boot.Config.RabbitMQ.TaskQueue, boot.Config.Task.WorkerConcurrency)

	<-ctx.Done()
	log.Println("shutting down task worker")
}
