package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ButyrinIA/feedsync/internal/config"
	"github.com/ButyrinIA/feedsync/internal/feed"
	"github.com/ButyrinIA/feedsync/internal/interaction"
	"github.com/ButyrinIA/feedsync/internal/models"
	"github.com/ButyrinIA/feedsync/internal/normalize"
	"github.com/ButyrinIA/feedsync/internal/notify"
	"github.com/ButyrinIA/feedsync/internal/session"
	"github.com/ButyrinIA/feedsync/internal/store"
	"github.com/ButyrinIA/feedsync/internal/transport"
)

const usage = `использование: feedclient [флаги] команда [аргументы]

команды:
  list                      показать ленту
  comments <post>           показать комментарии поста
  like|unlike <post>        лайк поста
  save|unsave <post>        закладка
  comment <post> <текст>    добавить комментарий
  reply <post> <comment> <текст>
  delete <comment>          удалить комментарий
  post <текст>              опубликовать пост
  watch                     следить за лентой до Ctrl+C
`

func main() {
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	baseURL := flag.String("url", "", "адрес сервиса (по умолчанию client.base_url)")
	username := flag.String("user", "", "имя пользователя (по умолчанию client.username)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}
	if *baseURL != "" {
		cfg.Client.BaseURL = *baseURL
	}
	if *username != "" {
		cfg.Client.Username = *username
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	guard := session.NewGuard(session.NewHTTPIssuer(cfg.Client.BaseURL, cfg.Client.Username, cfg.Client.Timeout), 30*time.Second)
	client := transport.NewClient(cfg.Client.BaseURL, cfg.Client.Timeout, guard)
	v := feed.New(ctx, client, feed.Options{
		Session:  guard,
		Notifier: notify.Log{},
		Author:   models.UserRef{Username: cfg.Client.Username, AvatarURL: cfg.Client.PlaceholderAvatar},
		Normalizer: normalize.New(normalize.Options{
			UntitledCaption:   normalize.UntitledCaption(cfg.Client.Locale),
			PlaceholderAvatar: cfg.Client.PlaceholderAvatar,
		}),
	})
	defer v.Close()

	if err := v.Load(ctx); err != nil {
		log.Fatalf("Не удалось загрузить ленту: %v", err)
	}
	if err := run(ctx, v, cfg, guard, flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, v *feed.View, cfg *config.Config, guard *session.Guard, args []string) error {
	cmd, args := args[0], args[1:]
	arg := func(i int) (models.ID, error) {
		if i >= len(args) {
			return "", fmt.Errorf("%s: не хватает аргументов", cmd)
		}
		return models.ID(args[i]), nil
	}

	var (
		res interaction.Result
		id  models.ID
		err error
	)
	switch cmd {
	case "list":
		printPosts(v.Posts())
		return nil
	case "comments":
		if id, err = arg(0); err != nil {
			return err
		}
		if err := v.LoadComments(ctx, id); err != nil {
			return err
		}
		printComments(v.Comments(id), 0)
		return nil
	case "like", "unlike", "save", "unsave":
		if id, err = arg(0); err != nil {
			return err
		}
		switch cmd {
		case "like":
			res, err = v.Like(ctx, id)
		case "unlike":
			res, err = v.Unlike(ctx, id)
		case "save":
			res, err = v.Save(ctx, id)
		default:
			res, err = v.Unsave(ctx, id)
		}
	case "comment", "reply":
		if id, err = arg(0); err != nil {
			return err
		}
		if err := v.LoadComments(ctx, id); err != nil {
			return err
		}
		var parent *models.ID
		text := args[1:]
		if cmd == "reply" {
			p, err := arg(1)
			if err != nil {
				return err
			}
			parent, text = &p, args[2:]
		}
		res, err = v.Comment(ctx, id, strings.Join(text, " "), parent)
	case "delete":
		if id, err = arg(0); err != nil {
			return err
		}
		if err := loadAllComments(ctx, v); err != nil {
			return err
		}
		res, err = v.DeleteComment(ctx, id)
	case "post":
		p, err := v.CreatePost(ctx, strings.Join(args, " "), nil)
		if err != nil {
			return err
		}
		printPosts([]models.Post{p})
		return nil
	case "watch":
		return watch(ctx, v, cfg, guard)
	default:
		return fmt.Errorf("неизвестная команда %q", cmd)
	}
	if err != nil {
		return err
	}
	return settle(ctx, res)
}

func settle(ctx context.Context, res interaction.Result) error {
	printPosts([]models.Post{res.Post})
	if res.Ignored {
		fmt.Println("пропущено: такой же запрос еще в пути")
		return nil
	}
	if res.Pending == nil {
		fmt.Println("запрос не потребовался")
		return nil
	}
	out, err := res.Pending.Wait(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("итог: %s (%s)", out.State, out.Verdict.Class)
	if out.Message != "" {
		fmt.Printf(": %s", out.Message)
	}
	fmt.Println()
	return nil
}

func loadAllComments(ctx context.Context, v *feed.View) error {
	for _, p := range v.Posts() {
		if err := v.LoadComments(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}

func watch(ctx context.Context, v *feed.View, cfg *config.Config, guard *session.Guard) error {
	token, err := guard.Token(ctx)
	if err != nil {
		return err
	}
	wsURL, err := feed.WebsocketURL(cfg.Client.BaseURL, token)
	if err != nil {
		return err
	}
	if err := v.Watch(ctx, wsURL); err != nil {
		return err
	}
	if cfg.Client.RefreshInterval > 0 {
		v.StartPolling(cfg.Client.RefreshInterval)
	}

	events := v.Store().Subscribe(ctx)
	printPosts(v.Posts())
	for e := range events {
		switch e.Kind {
		case store.PostCreated, store.PostUpdated:
			if p, ok := v.Store().Post(e.PostID); ok {
				printPosts([]models.Post{p})
			}
		case store.FeedReplaced:
			log.Printf("Лента обновлена: %d постов", len(v.Posts()))
		}
	}
	return nil
}

func printPosts(posts []models.Post) {
	for _, p := range posts {
		liked, saved := " ", " "
		if p.IsLiked {
			liked = "♥"
		}
		if p.IsSaved {
			saved = "★"
		}
		fmt.Printf("%s %s%s %-24s likes=%d comments=%d @%s\n",
			p.ID, liked, saved, p.Content, p.LikeCount, p.CommentCount, p.Author.Username)
	}
}

func printComments(list []models.Comment, depth int) {
	for _, c := range list {
		fmt.Printf("%s%s @%s: %s (likes=%d)\n", strings.Repeat("  ", depth), c.ID, c.Author.Username, c.Content, c.LikeCount)
		printComments(c.Replies, depth+1)
	}
}
