package tests

import (
    "os"
    "path/filepath"
    "sync"

    "github.com/testcontainers/testcontainers-go"
)

const containerLogsDir = "containerlogs"

// ContainerLogConsumer appends a container's output to containerlogs/<name>.log
// so a failed run can be inspected after the container is gone.
type ContainerLogConsumer struct {
    mu   sync.Mutex
    file *os.File
}

func NewContainerLogConsumer(containerName string) *ContainerLogConsumer {
    wd, err := os.Getwd()
    if err != nil {
        panic(err)
    }
    dir := filepath.Join(wd, containerLogsDir)
    if err := os.MkdirAll(dir, 0o755); err != nil {
        panic(err)
    }
    file, err := os.Create(filepath.Join(dir, containerName+".log"))
    if err != nil {
        panic(err)
    }
    return &ContainerLogConsumer{
        file: file,
    }
}

func (c *ContainerLogConsumer) Accept(log testcontainers.Log) {
    c.mu.Lock()
    defer c.mu.Unlock()
    if _, err := c.file.Write(log.Content); err != nil {
        panic(err)
    }
}
