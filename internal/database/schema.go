package database

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            email TEXT NOT NULL DEFAULT '',
            full_name TEXT NOT NULL DEFAULT '',
            avatar_url TEXT NOT NULL DEFAULT '',
            role TEXT NOT NULL DEFAULT 'user',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
	`CREATE TABLE IF NOT EXISTS gardens (
            id TEXT PRIMARY KEY,
            owner_id TEXT NOT NULL,
            name TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            address TEXT NOT NULL DEFAULT '',
            latitude REAL NOT NULL DEFAULT 0,
            longitude REAL NOT NULL DEFAULT 0,
            total_plots INTEGER NOT NULL,
            available_plots INTEGER NOT NULL,
            base_price_cents INTEGER NOT NULL,
            size_sqm REAL NOT NULL DEFAULT 0,
            amenities TEXT NOT NULL DEFAULT '[]',
            images TEXT NOT NULL DEFAULT '[]',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            CHECK (available_plots >= 0 AND available_plots <= total_plots)
        )`,
	`CREATE INDEX IF NOT EXISTS idx_gardens_owner ON gardens(owner_id)`,
	// active_slot хранит user_id:garden_id пока бронь не отменена, иначе NULL
	`CREATE TABLE IF NOT EXISTS bookings (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            garden_id TEXT NOT NULL,
            start_date DATETIME NOT NULL,
            end_date DATETIME NOT NULL,
            duration_months INTEGER NOT NULL,
            total_price_cents INTEGER NOT NULL,
            status TEXT NOT NULL DEFAULT 'confirmed',
            payment_method TEXT NOT NULL DEFAULT '',
            card_last4 TEXT NOT NULL DEFAULT '',
            active_slot TEXT UNIQUE,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_user ON bookings(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_garden ON bookings(garden_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_start ON bookings(start_date)`,
	`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            sender_id TEXT NOT NULL,
            receiver_id TEXT NOT NULL,
            content TEXT NOT NULL,
            is_read BOOLEAN NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL
        )`,
	`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(receiver_id, is_read)`,
	`CREATE TABLE IF NOT EXISTS outbox (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            event_type TEXT NOT NULL,
            aggregate_id TEXT NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, next_retry_at)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id VARCHAR(64) PRIMARY KEY,
            email VARCHAR(255) NOT NULL DEFAULT '',
            full_name VARCHAR(255) NOT NULL DEFAULT '',
            avatar_url VARCHAR(1024) NOT NULL DEFAULT '',
            role VARCHAR(16) NOT NULL DEFAULT 'user',
            created_at DATETIME(6) NOT NULL,
            updated_at DATETIME(6) NOT NULL
        ) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS gardens (
            id VARCHAR(64) PRIMARY KEY,
            owner_id VARCHAR(64) NOT NULL,
            name VARCHAR(255) NOT NULL,
            description TEXT NOT NULL,
            address VARCHAR(512) NOT NULL DEFAULT '',
            latitude DOUBLE NOT NULL DEFAULT 0,
            longitude DOUBLE NOT NULL DEFAULT 0,
            total_plots INT NOT NULL,
            available_plots INT NOT NULL,
            base_price_cents BIGINT NOT NULL,
            size_sqm DOUBLE NOT NULL DEFAULT 0,
            amenities TEXT NOT NULL,
            images TEXT NOT NULL,
            created_at DATETIME(6) NOT NULL,
            updated_at DATETIME(6) NOT NULL,
            INDEX idx_gardens_owner (owner_id),
            CONSTRAINT chk_gardens_plots CHECK (available_plots >= 0 AND available_plots <= total_plots)
        ) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS bookings (
            id VARCHAR(64) PRIMARY KEY,
            user_id VARCHAR(64) NOT NULL,
            garden_id VARCHAR(64) NOT NULL,
            start_date DATETIME(6) NOT NULL,
            end_date DATETIME(6) NOT NULL,
            duration_months INT NOT NULL,
            total_price_cents BIGINT NOT NULL,
            status VARCHAR(16) NOT NULL DEFAULT 'confirmed',
            payment_method VARCHAR(32) NOT NULL DEFAULT '',
            card_last4 VARCHAR(4) NOT NULL DEFAULT '',
            active_slot VARCHAR(130) NULL,
            created_at DATETIME(6) NOT NULL,
            updated_at DATETIME(6) NOT NULL,
            UNIQUE KEY uq_bookings_active_slot (active_slot),
            INDEX idx_bookings_user (user_id),
            INDEX idx_bookings_garden (garden_id),
            INDEX idx_bookings_start (start_date)
        ) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS messages (
            id VARCHAR(64) PRIMARY KEY,
            sender_id VARCHAR(64) NOT NULL,
            receiver_id VARCHAR(64) NOT NULL,
            content TEXT NOT NULL,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            created_at DATETIME(6) NOT NULL,
            INDEX idx_messages_pair (sender_id, receiver_id),
            INDEX idx_messages_unread (receiver_id, is_read)
        ) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS outbox (
            id BIGINT AUTO_INCREMENT PRIMARY KEY,
            event_type VARCHAR(64) NOT NULL,
            aggregate_id VARCHAR(64) NOT NULL,
            payload TEXT NOT NULL,
            status VARCHAR(16) NOT NULL DEFAULT 'pending',
            retry_count INT NOT NULL DEFAULT 0,
            last_error TEXT NULL,
            created_at DATETIME(6) NOT NULL,
            processed_at DATETIME(6) NULL,
            next_retry_at DATETIME(6) NULL,
            INDEX idx_outbox_status (status, next_retry_at)
        ) ENGINE=InnoDB`,
}
