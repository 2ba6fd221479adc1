// channels.go — YAML-файл каналов: channels[lang][name], папки пользователей
// и значения по умолчанию для RSS-метаданных.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bigkaa/goartstore/media-gateway/internal/domain/model"
)

// ChannelDefaults — значения по умолчанию для каналов без явных полей.
type ChannelDefaults struct {
	Domain         string `yaml:"domain"`
	BaseMediaURL   string `yaml:"base_media_url"`
	Category       string `yaml:"category"`
	Author         string `yaml:"author"`
	Generator      string `yaml:"generator"`
	ServerName     string `yaml:"server_name"`
	BaseFilePath   string `yaml:"base_file_path"`
	BaseOutputPath string `yaml:"base_output_path"`
}

func (d *ChannelDefaults) fill() {
	if d.Domain == "" {
		d.Domain = "ziongjcc.org"
	}
	if d.BaseMediaURL == "" {
		d.BaseMediaURL = "/"
	}
	if d.Category == "" {
		d.Category = "Christian"
	}
	if d.Author == "" {
		d.Author = "GJCC"
	}
	if d.Generator == "" {
		d.Generator = "rss_writer"
	}
	if d.ServerName == "" {
		d.ServerName = "localhost"
	}
	if d.BaseFilePath == "" {
		d.BaseFilePath = "/srv/media"
	}
	if d.BaseOutputPath == "" {
		d.BaseOutputPath = "/srv/rss"
	}
}

// Channels — содержимое файла каналов после заполнения значений по умолчанию.
// После загрузки только читается; методы возвращают копии каналов.
type Channels struct {
	Channels map[string]map[string]*model.Channel `yaml:"channels"`
	Folders  map[string]model.Folder              `yaml:"folders"`
	Default  ChannelDefaults                      `yaml:"default"`

	// paths — индекс lang → file_path → канал
	paths map[string]map[string]*model.Channel
}

// LoadChannels читает YAML-файл каналов. Пустой путь даёт конфигурацию
// без каналов и папок с корнем файлов basePath.
func LoadChannels(path, basePath string) (*Channels, error) {
	if path == "" {
		return ParseChannels([]byte("{}"), basePath)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение файла каналов %s: %w", path, err)
	}
	return ParseChannels(data, basePath)
}

// ParseChannels разбирает YAML каналов и заполняет значения по умолчанию.
// basePath используется, если default.base_file_path не задан.
func ParseChannels(data []byte, basePath string) (*Channels, error) {
	c := &Channels{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("разбор файла каналов: %w", err)
	}
	if c.Default.BaseFilePath == "" {
		c.Default.BaseFilePath = basePath
	}
	c.Default.fill()

	if c.Channels == nil {
		c.Channels = make(map[string]map[string]*model.Channel)
	}
	if c.Folders == nil {
		c.Folders = make(map[string]model.Folder)
	}

	for id, f := range c.Folders {
		if f.Name == "" {
			f.Name = id
		}
		if f.BaseFilePath == "" {
			return nil, fmt.Errorf("папка %q: не задан base_file_path", id)
		}
		c.Folders[id] = f
	}

	c.paths = make(map[string]map[string]*model.Channel, len(c.Channels))
	for lang, byName := range c.Channels {
		c.paths[lang] = make(map[string]*model.Channel, len(byName))
		for name, ch := range byName {
			if ch == nil {
				ch = &model.Channel{}
				byName[name] = ch
			}
			if ch.FilePath == "" {
				return nil, fmt.Errorf("канал %s/%s: не задан file_path", lang, name)
			}
			c.applyDefaults(lang, name, ch)
			c.paths[lang][ch.FilePath] = ch
		}
	}
	return c, nil
}

// applyDefaults заполняет пустые поля канала.
func (c *Channels) applyDefaults(lang, name string, ch *model.Channel) {
	d := &c.Default
	if ch.Name == "" {
		ch.Name = name
	}
	if ch.CopyLang == "" {
		ch.CopyLang = lang
	}
	if ch.Title == "" {
		ch.Title = "GJCC " + name
	}
	if ch.Description == "" {
		ch.Description = "GJCC Content " + name
	}
	if ch.Language == "" {
		ch.Language = "en-us"
	}
	if ch.ServerName == "" {
		ch.ServerName = d.ServerName
	}
	if ch.MediaLink == "" {
		ch.MediaLink = c.mediaLink(ch.ServerName, ch.FilePath)
	}
	if ch.Link == "" {
		ch.Link = ch.MediaLink
	}
	if ch.Category == "" {
		ch.Category = d.Category
	}
	if ch.Author == "" {
		ch.Author = d.Author
	}
	if ch.Generator == "" {
		ch.Generator = d.Generator
	}
	if ch.OutputPath == "" {
		ch.OutputPath = d.BaseOutputPath + "/" + strings.ToLower(name) + ".rss"
	}
}

// mediaLink строит публичный URL каталога: https://{server}.{domain}{base_media_url}{relative}.
func (c *Channels) mediaLink(server, filePath string) string {
	relative := strings.TrimPrefix(filePath, c.Default.BaseFilePath)
	relative = strings.TrimLeft(relative, "/")
	return "https://" + server + "." + c.Default.Domain + c.Default.BaseMediaURL + relative
}

// Channel возвращает копию канала lang/name.
func (c *Channels) Channel(lang, name string) (model.Channel, bool) {
	ch, ok := c.Channels[lang][name]
	if !ok {
		return model.Channel{}, false
	}
	return ch.Clone(), true
}

// ByPath возвращает копию канала, настроенного на каталог dir.
func (c *Channels) ByPath(lang, dir string) (model.Channel, bool) {
	ch, ok := c.paths[lang][dir]
	if !ok {
		return model.Channel{}, false
	}
	return ch.Clone(), true
}

// FolderChannel возвращает канал для каталога dir: настроенный, если есть,
// иначе построенный по умолчаниям (заголовок из двух последних компонентов пути).
func (c *Channels) FolderChannel(lang, dir string) (model.Channel, error) {
	if ch, ok := c.ByPath(lang, dir); ok {
		return ch, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return model.Channel{}, fmt.Errorf("каталог %s: %w", dir, err)
	}
	if !info.IsDir() {
		return model.Channel{}, fmt.Errorf("%s не является каталогом", dir)
	}

	parts := strings.Split(strings.Trim(filepath.ToSlash(dir), "/"), "/")
	title := dir
	if len(parts) >= 2 {
		title = strings.Join(parts[len(parts)-2:], " ")
	}
	name := strings.ToLower(strings.ReplaceAll(title, " ", "_"))

	ch := model.Channel{
		Name:        name,
		Title:       "GJCC " + title,
		Description: "GJCC Content " + title,
		FilePath:    dir,
		CopyLang:    lang,
	}
	c.applyDefaults(lang, name, &ch)
	return ch, nil
}

// Folder возвращает папку по идентификатору из claim default_webdavfs.
func (c *Channels) Folder(id string) (model.Folder, bool) {
	f, ok := c.Folders[id]
	return f, ok
}

// All возвращает копии всех каналов, упорядоченные по ключу lang/name.
func (c *Channels) All() []model.Channel {
	var out []model.Channel
	for _, byName := range c.Channels {
		for _, ch := range byName {
			out = append(out, ch.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CacheID() < out[j].CacheID() })
	return out
}
