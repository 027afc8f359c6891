package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"dineqr/config"
	"dineqr/internal/cart"
	"dineqr/internal/domain"
	"dineqr/internal/notifications"
	"dineqr/internal/orders"
	"dineqr/internal/restapi"
	"dineqr/internal/session"
	"dineqr/internal/socket"
	"dineqr/internal/storage"
)

func main() {
	config.LoadEnv()
	cfg := config.LoadClient()

	hotelKey := flag.String("hotel", os.Getenv("HOTEL_KEY"), "hotel key to follow")
	staffID := flag.String("staff", os.Getenv("STAFF_USER_ID"), "staff user id for the notification channel")
	viewName := flag.String("view", "pending", "order view to follow: pending or cooking")
	history := flag.Bool("history", false, "print the order history and exit")
	checkout := flag.Bool("checkout", false, "place the staff user's saved cart as a parcel order and exit")
	add := flag.String("add", "", "add foodId:portion:quantity to the staff user's cart and exit")
	login := flag.Bool("login", false, "log in before following orders; the password is read from STAFF_PASSWORD")
	loginID := flag.String("login-id", os.Getenv("STAFF_LOGIN_ID"), "staff login id used with -login")
	role := flag.String("role", string(domain.RoleStaff), "login role: staff or manager")
	guestEmail := flag.String("guest-email", "", "verify a guest email with a one-time code and exit")
	flag.Parse()

	if *hotelKey == "" && *guestEmail == "" {
		log.Fatal("-hotel is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient, err := restapi.NewHTTPClient(cfg.RequestTimeout)
	if err != nil {
		log.Fatal("Failed to create HTTP client:", err)
	}
	api := restapi.NewClient(restapi.BaseURL(cfg.Hostname, cfg.APILocal, cfg.APIDeployed), httpClient)

	switch {
	case *guestEmail != "":
		if err := guestLogin(ctx, api, *guestEmail); err != nil {
			log.Fatal("Guest verification failed:", err)
		}
		return
	case *history:
		if err := printHistory(ctx, api, *hotelKey); err != nil {
			log.Fatal("Failed to load order history:", err)
		}
		return
	case *add != "":
		if err := addToCart(ctx, api, *hotelKey, *staffID, *add); err != nil {
			log.Fatal("Failed to add to cart:", err)
		}
		return
	case *checkout:
		if err := checkoutCart(ctx, api, *hotelKey, *staffID); err != nil {
			log.Fatal("Checkout failed:", err)
		}
		return
	}

	view, ok := orders.ViewByName(*viewName)
	if !ok {
		log.Fatalf("unknown view %q", *viewName)
	}

	var creds *restapi.LoginRequest
	if *login {
		creds = &restapi.LoginRequest{
			HotelKey: *hotelKey,
			LoginID:  *loginID,
			Password: os.Getenv("STAFF_PASSWORD"),
			Role:     domain.Role(*role),
		}
	}
	if err := follow(ctx, cfg, api, view, domain.Scope{HotelKey: *hotelKey, StaffUserID: *staffID}, creds); err != nil {
		log.Fatal(err)
	}
}

// follow optionally logs in, then watches the board until ctx ends. The
// session is ended on the way out.
func follow(ctx context.Context, cfg config.Client, api *restapi.Client, view orders.View, scope domain.Scope, creds *restapi.LoginRequest) error {
	if creds == nil {
		return watch(ctx, cfg, view, scope)
	}

	rdb := config.MustInitRedis()
	defer rdb.Close()

	store := session.New(storage.NewRedisStore(rdb), nil)
	sess, err := beginStaffSession(ctx, api, store, *creds)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.End(context.Background()); err != nil {
			log.Printf("Warning: failed to end session: %v", err)
		}
	}()

	tables, err := store.Tables(ctx)
	if err != nil {
		return err
	}
	log.Printf("Logged in as %s (%s), %d tables", sess.UserID, sess.Role, len(tables))

	scope.HotelKey = sess.HotelKey
	scope.StaffUserID = sess.UserID
	return watch(ctx, cfg, view, scope)
}

func guestLogin(ctx context.Context, api *restapi.Client, email string) error {
	rdb := config.MustInitRedis()
	defer rdb.Close()

	store := session.New(storage.NewRedisStore(rdb), nil)
	defer store.End(context.Background())

	sess, err := verifyGuest(ctx, api, store, email, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	fmt.Printf("Verified %s as user %s\n", email, sess.UserID)
	return nil
}

func addToCart(ctx context.Context, api *restapi.Client, hotelKey, userID, arg string) error {
	if userID == "" {
		return fmt.Errorf("-staff is required to add to a cart")
	}
	sel, err := parseSelection(arg)
	if err != nil {
		return err
	}
	food, err := findFood(ctx, api.FoodPages(hotelKey, ""), sel.FoodID)
	if err != nil {
		return err
	}
	line, err := cartLine(food, sel)
	if err != nil {
		return err
	}

	rdb := config.MustInitRedis()
	defer rdb.Close()

	carts, err := cart.New(storage.NewRedisStore(rdb))
	if err != nil {
		return err
	}
	defer carts.Close()

	items, err := carts.Add(ctx, userID, []domain.CartLineItem{line})
	if err != nil {
		return err
	}
	renderCart(os.Stdout, items, cart.Total(items))
	return nil
}

func watch(ctx context.Context, cfg config.Client, view orders.View, scope domain.Scope) error {
	client := socket.New(socket.Options{
		URL:            cfg.SocketURL,
		ReconnectDelay: cfg.ReconnectDelay,
		DisablePolling: cfg.DisablePolling,
	})
	defer client.Close()

	board := orders.NewBoard()
	feed := notifications.NewFeed()

	var mu sync.Mutex
	redraw := func() {
		mu.Lock()
		defer mu.Unlock()
		fmt.Print("\033[H\033[2J")
		renderBoard(os.Stdout, view.Name, board.Orders(), feed.Unread(), time.Now())
	}

	tracking, err := orders.Track(client, view, scope, board, redraw)
	if err != nil {
		return fmt.Errorf("track %s orders: %w", view.Name, err)
	}
	defer tracking.Close()

	if scope.StaffUserID != "" {
		feedTracking, err := notifications.Track(client, scope, feed, redraw)
		if err != nil {
			return fmt.Errorf("track notifications: %w", err)
		}
		defer feedTracking.Close()
	}

	if err := client.Connect(ctx); err != nil {
		return err
	}
	log.Printf("Following %s orders of hotel %s via %s", view.Name, scope.HotelKey, cfg.SocketURL)

	// Keep the "time since" column fresh between pushes.
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if client.Connected() {
				redraw()
			}
		}
	}
}

func printHistory(ctx context.Context, api *restapi.Client, hotelKey string) error {
	pages := api.HistoryPages(hotelKey)
	for pages.HasMore() {
		if _, err := pages.Next(ctx); err != nil {
			return err
		}
	}
	renderBoard(os.Stdout, "history", pages.Items(), 0, time.Now())
	return nil
}

func checkoutCart(ctx context.Context, api *restapi.Client, hotelKey, userID string) error {
	if userID == "" {
		return fmt.Errorf("-staff is required for checkout")
	}
	rdb := config.MustInitRedis()
	defer rdb.Close()

	carts, err := cart.New(storage.NewRedisStore(rdb))
	if err != nil {
		return err
	}
	defer carts.Close()

	items, err := carts.LoadForCheckout(ctx, userID)
	if err != nil {
		return err
	}
	renderCart(os.Stdout, items, cart.Total(items))
	if len(items) == 0 {
		return nil
	}

	order, err := api.PlaceOrder(ctx, restapi.PlaceOrderRequest{
		HotelKey:  hotelKey,
		OrderType: domain.OrderTypeParcel,
		Items:     items,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Order %s placed\n", order.ID)

	if err := carts.ClearAfterConfirm(userID); err != nil {
		return err
	}
	// Let the delayed clear run before the scheduler shuts down.
	time.Sleep(cart.ConfirmDelay + 500*time.Millisecond)
	return nil
}
