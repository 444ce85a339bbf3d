package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// registerStatic serves a built single page frontend from root when it holds
// an index.html. Unknown GET paths outside /api fall back to the index.
func registerStatic(router *gin.Engine, root string) {
	if root == "" {
		return
	}
	index := filepath.Join(root, "index.html")
	if !fileExists(index) {
		return
	}

	router.StaticFile("/", index)
	router.Static("/assets", filepath.Join(root, "assets"))
	router.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.File(index)
	})
}

// DetectStaticRoot returns dir when set, otherwise the first of the working
// directory and its two parents that holds an index.html. It returns "" when
// there is no frontend to serve.
func DetectStaticRoot(dir string) string {
	if dir != "" {
		return dir
	}

	startDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	candidates := []string{
		startDir,
		filepath.Join(startDir, "dist"),
		filepath.Dir(startDir),
		filepath.Dir(filepath.Dir(startDir)),
	}

	for _, dir := range candidates {
		if fileExists(filepath.Join(dir, "index.html")) {
			return dir
		}
	}

	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
