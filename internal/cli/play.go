package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"butterfly-quiz-service/internal/app"
	"butterfly-quiz-service/internal/domain"
	"butterfly-quiz-service/internal/infra/file"
	"butterfly-quiz-service/internal/infra/memory"
	"butterfly-quiz-service/internal/infra/remote"
	"butterfly-quiz-service/internal/logging"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewPlayCmd builds the interactive terminal client. It talks to a running
// server and keeps its session and progress in a local JSON store, so a quiz
// paused in one run can be resumed in the next.
func NewPlayCmd() *cobra.Command {
	var serverURL, storePath string

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play quizzes from the terminal against a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), serverURL, storePath)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "base URL of the quiz server")
	cmd.Flags().StringVar(&storePath, "store", defaultStorePath(), "path to the local session store")
	return cmd
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "quiz-butterfly.json"
	}
	return filepath.Join(home, ".quiz-butterfly", "store.json")
}

type playSession struct {
	auth *app.AuthService
	quiz *app.QuizService
	in   *bufio.Reader
}

func runPlay(ctx context.Context, serverURL, storePath string) error {
	store, err := file.Open(storePath)
	if err != nil {
		return err
	}

	log := logging.Discard()
	directory := remote.NewUserDirectory(serverURL, nil)
	feed := app.NewScoreFeed()
	auth := app.NewAuthService(store, directory, feed, log)

	source := remote.NewQuestionSource(serverURL, nil, func() string {
		token, _ := auth.Token()
		return token
	})
	questions := memory.NewQuestionRepository(source, 10*time.Minute)
	quiz := app.NewQuizService(store, questions, auth, feed, log)

	p := &playSession{auth: auth, quiz: quiz, in: bufio.NewReader(os.Stdin)}

	user, ok := auth.RestoreSession(ctx)
	if ok {
		fmt.Printf("Welcome back, %s!\n", user.Username)
	} else {
		user, err = p.signIn(ctx)
		if err != nil {
			return err
		}
	}
	return p.mainLoop(ctx, user)
}

func (p *playSession) signIn(ctx context.Context) (domain.User, error) {
	for {
		choice, err := p.prompt("[l]ogin or [r]egister? ")
		if err != nil {
			return domain.User{}, err
		}

		username, err := p.prompt("username: ")
		if err != nil {
			return domain.User{}, err
		}
		password, err := p.promptPassword("password: ")
		if err != nil {
			return domain.User{}, err
		}

		var user domain.User
		switch strings.ToLower(choice) {
		case "r", "register":
			user, err = p.auth.Register(ctx, username, password)
		default:
			user, err = p.auth.Login(ctx, username, password)
		}
		if err == nil {
			fmt.Printf("Signed in as %s.\n", user.Username)
			return user, nil
		}

		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			fmt.Println("Invalid username or password.")
		case errors.Is(err, domain.ErrDuplicateUsername):
			fmt.Println("Username is already taken or registration failed.")
		default:
			return domain.User{}, err
		}
	}
}

func (p *playSession) mainLoop(ctx context.Context, user domain.User) error {
	for {
		fmt.Println()
		choice, err := p.prompt("[p]lay, [s]cores, [o]ut (logout), [q]uit: ")
		if err != nil {
			return err
		}
		switch strings.ToLower(choice) {
		case "p", "play":
			if err := p.playQuiz(ctx, user.Username); err != nil {
				return err
			}
		case "s", "scores":
			if err := p.showScores(ctx); err != nil {
				return err
			}
		case "o", "out", "logout":
			if err := p.auth.Logout(ctx); err != nil {
				return err
			}
			fmt.Println("Signed out.")
			user, err = p.signIn(ctx)
			if err != nil {
				return err
			}
		case "q", "quit", "":
			return nil
		}
	}
}

func (p *playSession) showScores(ctx context.Context) error {
	if _, err := p.auth.RefreshProfile(ctx); err != nil {
		return err
	}
	board, err := p.auth.Leaderboard()
	if err != nil {
		return err
	}
	fmt.Printf("High scores for %s:\n", board.Username)
	for _, d := range domain.Difficulties() {
		fmt.Printf("  %-8s %d\n", d, board.Scores[d])
	}
	fmt.Printf("  total    %d\n", board.Total)
	return nil
}

func (p *playSession) playQuiz(ctx context.Context, username string) error {
	raw, err := p.prompt("difficulty (easy/medium/advance): ")
	if err != nil {
		return err
	}
	difficulty, err := domain.ParseDifficulty(raw)
	if err != nil {
		fmt.Println("Unknown difficulty.")
		return nil
	}

	progress, err := p.quiz.Start(ctx, username, difficulty, true)
	if err != nil {
		if errors.Is(err, domain.ErrQuestionSetNotFound) {
			fmt.Println("No questions available for that difficulty.")
			return nil
		}
		return err
	}
	if progress.CurrentQuestionIndex > 0 || progress.Answered() {
		fmt.Printf("Resuming at question %d with score %d.\n", progress.CurrentQuestionIndex+1, progress.Score)
	}

	for {
		progress, question, err := p.quiz.Progress(ctx, username)
		if err != nil {
			return err
		}
		if question == nil {
			break
		}

		if !progress.Answered() {
			fmt.Printf("\nQ%d: %s\n", progress.CurrentQuestionIndex+1, question.QuestionText)
			for i, option := range question.Options {
				fmt.Printf("  %d) %s\n", i+1, option)
			}
			answer, err := p.prompt("answer (number, or p to pause): ")
			if err != nil {
				return err
			}
			if strings.EqualFold(answer, "p") {
				if _, err := p.quiz.Pause(ctx, username); err != nil {
					return err
				}
				fmt.Println("Paused. Your progress is saved.")
				return nil
			}

			n, convErr := strconv.Atoi(answer)
			if convErr != nil {
				fmt.Println("Enter the number of an option.")
				continue
			}
			progress, err = p.quiz.SubmitAnswer(ctx, username, n-1)
			if errors.Is(err, domain.ErrInvalidOption) {
				fmt.Println("That option does not exist.")
				continue
			}
			if err != nil {
				return err
			}

			last := progress.UserAnswers[len(progress.UserAnswers)-1]
			if last.IsCorrect {
				fmt.Println("Correct!")
			} else {
				fmt.Printf("Wrong. The answer was: %s\n", last.CorrectAnswer)
			}
			if last.Reference != "" {
				fmt.Printf("  %s\n", last.Reference)
			}
		}

		final, finished, err := p.quiz.Advance(ctx, username)
		if err != nil {
			return err
		}
		if finished {
			fmt.Printf("\nQuiz finished! Score: %d/%d\n", final.Score, len(final.UserAnswers))
			return p.showScores(ctx)
		}
	}
	return nil
}

func (p *playSession) prompt(label string) (string, error) {
	fmt.Print(label)
	line, err := p.in.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *playSession) promptPassword(label string) (string, error) {
	fmt.Print(label)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}
