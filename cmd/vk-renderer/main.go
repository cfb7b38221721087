package main

import (
	"flag"
	"log"
	"runtime"

	"github.com/vulkan-go/glfw/v3.3/glfw"

	"github.com/SahilMadan/vk-renderer/renderer"
)

const (
	windowWidth  = 1700
	windowHeight = 900
)

func init() {
	// GLFW/Vulkan require the main thread.
	runtime.LockOSThread()
}

func main() {
	modelPath := flag.String("model", "", "path to a glTF scene to load")
	shaderDir := flag.String("shaders", "shaders", "directory holding compiled SPIR-V shaders")
	flag.Parse()

	if err := glfw.Init(); err != nil {
		log.Fatalf("init glfw: %v", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(windowWidth, windowHeight, "vk-renderer", nil, nil)
	if err != nil {
		log.Fatalf("create window: %v", err)
	}
	defer window.Destroy()

	// Ensure the framebuffer has a non-zero size before initializing Vulkan.
	for {
		w, h := window.GetFramebufferSize()
		if w > 0 && h > 0 {
			break
		}
		glfw.WaitEventsTimeout(0.01)
	}

	r := &renderer.Renderer{}
	defer r.Shutdown()

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeySpace:
			r.HandleEvent(renderer.EventToggleShader)
		}
	})

	err = r.Init(renderer.InitParams{
		Width:           windowWidth,
		Height:          windowHeight,
		ApplicationName: "vk-renderer",
		Window:          window,
		Extensions:      window.GetRequiredInstanceExtensions(),
		ModelPath:       *modelPath,
		ShaderDir:       *shaderDir,
	})
	if err != nil {
		log.Fatalf("init renderer: %v", err)
	}

	log.Printf("entering main loop")
	for !window.ShouldClose() {
		glfw.PollEvents()
		r.Draw()
	}
}
